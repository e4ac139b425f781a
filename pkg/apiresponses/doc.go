// Package apiresponses provides the JSON envelope helpers used by the foodctl
// dev server. Every body carries a "success" flag, matching what the food
// recognition API returns.
package apiresponses

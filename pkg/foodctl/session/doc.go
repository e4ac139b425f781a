// Package session tracks whether the foodctl user is logged in and tells the
// host application when a session ends, either by logout or because the
// credential could not be renewed.
package session

// Package auth holds the credential side of the foodctl session layer: the
// credential store and its persistence backends (memory, file, keychain, redis),
// the token service client, and the single-flight refresh coordinator.
package auth

// Package sanitizer normalizes request input before validation.
//
// Every function is idempotent. Input that cannot be normalized is returned
// trimmed but otherwise unchanged so the validator reports it.
package sanitizer

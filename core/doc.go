/*
Package core provides types, constants, and functions that have no other dependencies
within the converter and can be used by all of its packages.  This includes n-d points,
chunked dataset geometry, and leveled logging with optional log rotation.
*/
package core

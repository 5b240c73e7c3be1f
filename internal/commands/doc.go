// Package commands implements the sealzip command line: enc, dec, info and
// rekey.
//
// Flags may also be given as SEALZIP_* environment variables, for example
// SEALZIP_STREAM=true. SEALZIP_PASSWORD supplies the password when it is
// not passed as an argument; otherwise it is prompted for on the terminal.
package commands

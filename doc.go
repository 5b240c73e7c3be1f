// Package sealzip encrypts a single file with a password and stores the
// result in a minimal zip archive.
//
// # Overview
//
// The archive holds one stored entry with a short, readable notice. The
// encrypted payload rides in the extra data region between the entry and
// the central directory, so generic zip tools open the archive without
// revealing anything but the notice.
//
// The payload is an envelope:
//   - a 12 byte header carrying the Argon2id cost parameters and salt length
//   - the salt
//   - AES-128-GCM ciphertext followed by the 16 byte tag
//
// The cipher key and nonce are both taken from the Argon2id output, so
// every archive must use a fresh salt.
//
// # Layers
//
// Layout and Record describe fixed little-endian binary records. The zip
// headers and the envelope header are declared with them.
//
// WriteEntry, ReadEntry and ArchiveWriter write and read the single-entry
// archive.
//
// Session drives a cipher Engine through a small byte exchange: the
// session fills numbered channels (key, nonce, associated data, input) and
// the engine pulls from them and pushes output back. Seal and Unseal run a
// whole buffer through one session.
//
// Transform wraps a session in a Start/Chunk/End lifecycle and Pipe runs it
// as a read, transform, write pipeline with bounded queues.
//
// Sealer ties it together: Encrypt and Decrypt work on envelopes,
// WriteArchive and ReadArchive on whole archives, EncryptStream and
// DecryptStream on archives too large to buffer, and SealFile and OpenFile
// on an absfs.FileSystem. Rekey seals an existing archive again under a new
// password.
//
// # Basic Usage
//
//	salt, _ := sealzip.GenerateSalt(sealzip.DefaultSaltSize)
//	env, err := sealzip.Encrypt(ctx, msg, password, salt, sealzip.DefaultKDFParams)
//	if err != nil {
//	    return err
//	}
//
//	_, plain, err := sealzip.Decrypt(ctx, env.Bytes(), password)
//	if sealzip.IsAuthenticationError(err) {
//	    // wrong password or modified data
//	}
//
// # Security Considerations
//
// Decryption through Pipe or DecryptStream writes plaintext before the tag
// has been checked. The output must be discarded unless the call returns
// nil. OpenFile does this by writing to a temporary file.
//
// Only the ciphertext and tag are authenticated. The archive entry and the
// envelope header are not, although tampering with the header changes the
// derived key and so fails authentication.
package sealzip

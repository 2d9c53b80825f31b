// Package container implements the encrypted-chunk container codec.
//
// A container is a single file laid out as:
//
//	salt[16] | (len:u32-BE | unit)*
//
// where each unit is IV[16] followed by AES-256-CBC ciphertext whose
// length is a positive multiple of the AES block size. The key is
// derived from a password and the stored salt with PBKDF2-HMAC-SHA256.
//
// The format carries no authentication tag: a failed PKCS7 padding
// check on decrypt is the only integrity signal, and it cannot
// distinguish a wrong password from corrupted ciphertext.
package container

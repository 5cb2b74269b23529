// Package encryption seals byte payloads with an authenticated cipher.
//
// Keys are passphrases hashed with SHA-256 to 256 bits. Each sealed payload
// is the random nonce followed by the ciphertext and tag. Additional data
// passed to Seal must be passed unchanged to Open.
//
// # Usage
//
//	s, err := encryption.New("my-secret-passphrase", encryption.WithAlgorithm(encryption.AlgorithmChaCha20))
//	sealed, err := s.Seal(payload, []byte(id))
//	payload, err := s.Open(sealed, []byte(id))
package encryption

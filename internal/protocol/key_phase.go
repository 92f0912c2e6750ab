package protocol

// KeyPhaseBit is the 1-bit key phase carried in a short header. It is
// carried purely for wire round-trip fidelity: this core implements no
// key-update logic of its own, since the cryptographic handshake that
// drives key updates is out of scope.
type KeyPhaseBit uint8

const (
	KeyPhaseZero KeyPhaseBit = iota
	KeyPhaseOne
)

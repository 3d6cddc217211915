// Package identity loads or creates the ed25519 keypair a swarm runs as.
package identity

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrRSAExportUnsupported is returned by ExportPublicKey when the identity
// holds an RSA key.
var ErrRSAExportUnsupported = fmt.Errorf("not a RSA key")

// Identity bundles a keypair with its derived peer ID, mirroring the data
// model's {keypair, peer_id} pair. The private key is written out only to
// the identity file by LoadOrCreate; ExportPublicKey exports the public half.
type Identity struct {
	priv   crypto.PrivKey
	PeerID peer.ID
}

// LoadOrCreate loads an existing identity from path, or generates a fresh
// ed25519 keypair and persists it there if no file exists. An empty path
// always generates a random, unpersisted identity.
func LoadOrCreate(path string) (*Identity, error) {
	if path == "" {
		return generate()
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode().Perm()&0o077 != 0 {
			return nil, fmt.Errorf("identity file %s has overly permissive mode %#o, refusing to load", path, info.Mode().Perm())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading identity file %s: %w", path, err)
		}
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshalling identity from %s: %w", path, err)
		}
		return fromPrivKey(priv)
	case os.IsNotExist(err):
		ident, err := generate()
		if err != nil {
			return nil, err
		}
		data, err := crypto.MarshalPrivateKey(ident.priv)
		if err != nil {
			return nil, fmt.Errorf("marshalling new identity: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("writing identity file %s: %w", path, err)
		}
		return ident, nil
	default:
		return nil, fmt.Errorf("stat identity file %s: %w", path, err)
	}
}

func generate() (*Identity, error) {
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 keypair: %w", err)
	}
	return fromPrivKey(priv)
}

func fromPrivKey(priv crypto.PrivKey) (*Identity, error) {
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("deriving peer id: %w", err)
	}
	return &Identity{priv: priv, PeerID: id}, nil
}

// PrivKey returns the underlying private key, for wiring into libp2p.New.
func (i *Identity) PrivKey() crypto.PrivKey {
	return i.priv
}

// ExportPublicKey returns the protobuf-encoded public key. Exporting an RSA
// key is rejected: this runtime only ever mints ed25519 identities and an
// RSA key reaching this path indicates a foreign, untrusted key file.
func (i *Identity) ExportPublicKey() ([]byte, error) {
	if i.priv.Type() == crypto.RSA {
		return nil, ErrRSAExportUnsupported
	}
	return crypto.MarshalPublicKey(i.priv.GetPublic())
}

package op

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/authcove/idp/pkg/crypto"
)

// Crypto is the gateway to every JOSE operation the core needs. Signing keys,
// algorithms and key rotation are owned by the implementation; the core only
// ever asks for a signature, a verification or opaque-token encryption.
type Crypto interface {
	// Sign serializes claims to JSON and returns a compact JWS.
	Sign(ctx context.Context, claims any) (string, error)
	// Verify checks a compact JWS against the key set and returns the payload.
	Verify(ctx context.Context, jws string) ([]byte, error)
	// Encrypt turns a token identifier into an opaque token string.
	Encrypt(id string) (string, error)
	// Decrypt restores the token identifier from an opaque token string.
	Decrypt(token string) (string, error)

	SignatureAlgorithm() jose.SignatureAlgorithm
	KeySet(ctx context.Context) (*jose.JSONWebKeySet, error)
}

type joseCrypto struct {
	signer jose.Signer
	alg    jose.SignatureAlgorithm
	key    *rsa.PrivateKey
	keyID  string
	aesKey string
}

// NewCrypto builds the default Crypto over a single RSA signing key and an AES
// key for opaque tokens. The AES key must be 16, 24 or 32 bytes.
func NewCrypto(key *rsa.PrivateKey, keyID string, aesKey string) (Crypto, error) {
	alg := jose.RS256
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: key},
		(&jose.SignerOptions{}).WithHeader("kid", keyID),
	)
	if err != nil {
		return nil, err
	}
	return &joseCrypto{
		signer: signer,
		alg:    alg,
		key:    key,
		keyID:  keyID,
		aesKey: aesKey,
	}, nil
}

func (c *joseCrypto) Sign(_ context.Context, claims any) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return crypto.SignPayload(payload, c.signer)
}

func (c *joseCrypto) Verify(_ context.Context, compact string) ([]byte, error) {
	jws, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, err
	}
	return jws.Verify(c.key.Public())
}

func (c *joseCrypto) Encrypt(id string) (string, error) {
	return crypto.EncryptAES(id, c.aesKey)
}

func (c *joseCrypto) Decrypt(token string) (string, error) {
	return crypto.DecryptAES(token, c.aesKey)
}

func (c *joseCrypto) SignatureAlgorithm() jose.SignatureAlgorithm {
	return c.alg
}

func (c *joseCrypto) KeySet(context.Context) (*jose.JSONWebKeySet, error) {
	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       c.key.Public(),
			KeyID:     c.keyID,
			Algorithm: string(c.alg),
			Use:       "sig",
		}},
	}, nil
}

// VerifyAgainstKeySet parses a compact JWS and verifies it against any key of
// the set, returning the payload. Used for client supplied request objects,
// which are signed with the client's registered keys rather than the server's.
func VerifyAgainstKeySet(compact string, keySet *jose.JSONWebKeySet) ([]byte, error) {
	jws, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, err
	}
	if keySet == nil || len(keySet.Keys) == 0 {
		return nil, jose.ErrCryptoFailure
	}
	var payload []byte
	for _, key := range keySet.Keys {
		payload, err = jws.Verify(key)
		if err == nil {
			return payload, nil
		}
	}
	return nil, err
}

// UnsafeClaimsWithoutVerification extracts the payload claims of a JWS without
// checking its signature. Only used for routing decisions (issuer lookup)
// before the proper verification runs.
func UnsafeClaimsWithoutVerification(compact string, claims any) error {
	jws, err := jose.ParseSigned(compact)
	if err != nil {
		return err
	}
	payload := jws.UnsafePayloadWithoutVerification()
	if len(payload) == 0 {
		return errors.New("empty jws payload")
	}
	return json.Unmarshal(payload, claims)
}

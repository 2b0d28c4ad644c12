// Package vault keeps seed phrases in a password-encrypted file next to the
// cold database. Seed names are stored in clear text so they can be listed
// without the password; phrases only ever exist inside the ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N=2^18 needs ~256MB RAM and 0.5-2s per derivation.
var scryptN = 1 << 18

const (
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
	fileVersion  = 1
)

var (
	ErrWrongPassword = errors.New("invalid password")
	ErrUnknownSeed   = errors.New("seed not in vault")
	ErrSeedExists    = errors.New("seed already in vault")
	ErrFileExists    = errors.New("vault file is not empty")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File is the on-disk layout.
type File struct {
	Version    int      `json:"version"`
	Seeds      []string `json:"seeds"`
	Salt       string   `json:"salt"`
	Nonce      string   `json:"nonce"`
	CipherText string   `json:"cipherText"`
}

type data struct {
	Phrases   map[string]string `json:"phrases"`
	UpdatedAt string            `json:"updatedAt"`
}

// Vault is an opened vault. The derived key stays in memory until Close.
type Vault struct {
	path    string
	salt    []byte
	key     []byte
	phrases map[string]string
}

// Create writes an empty vault at path. An existing non-empty file is never
// overwritten.
func Create(path string, password []byte) (*Vault, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrFileExists)
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	v := &Vault{path: path, salt: salt, key: key, phrases: make(map[string]string)}
	if err := v.save(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// Open decrypts the vault at path.
func Open(path string, password []byte) (*Vault, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		clear(key)
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		clear(key)
		return nil, ErrWrongPassword
	}
	defer clear(plaintext)

	var d data
	if err := json.Unmarshal(plaintext, &d); err != nil {
		clear(key)
		return nil, fmt.Errorf("failed to unmarshal vault data: %w", err)
	}
	if d.Phrases == nil {
		d.Phrases = make(map[string]string)
	}
	return &Vault{path: path, salt: salt, key: key, phrases: d.Phrases}, nil
}

// SeedNames lists the seeds of the vault at path without decrypting it.
func SeedNames(path string) ([]string, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return f.Seeds, nil
}

// Phrase returns the phrase stored under name.
func (v *Vault) Phrase(name string) (string, error) {
	p, ok := v.phrases[name]
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownSeed)
	}
	return p, nil
}

// Seeds lists stored seed names in order.
func (v *Vault) Seeds() []string {
	names := make([]string, 0, len(v.phrases))
	for n := range v.phrases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add stores phrase under name and rewrites the file.
func (v *Vault) Add(name, phrase string) error {
	if _, ok := v.phrases[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrSeedExists)
	}
	v.phrases[name] = phrase
	if err := v.save(); err != nil {
		delete(v.phrases, name)
		return err
	}
	return nil
}

// Remove drops name and rewrites the file.
func (v *Vault) Remove(name string) error {
	p, ok := v.phrases[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownSeed)
	}
	delete(v.phrases, name)
	if err := v.save(); err != nil {
		v.phrases[name] = p
		return err
	}
	return nil
}

// Rekey re-encrypts the vault under a new password with a fresh salt.
func (v *Vault) Rekey(password []byte) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	oldSalt, oldKey := v.salt, v.key
	v.salt, v.key = salt, key
	if err := v.save(); err != nil {
		v.salt, v.key = oldSalt, oldKey
		clear(key)
		return err
	}
	clear(oldKey)
	return nil
}

// Close wipes the key and phrases from memory.
func (v *Vault) Close() {
	clear(v.key)
	clear(v.phrases)
}

func (v *Vault) save() error {
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	aead, err := newAEAD(v.key)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(data{Phrases: v.phrases, UpdatedAt: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("failed to marshal vault data: %w", err)
	}
	defer clear(plaintext)

	f := File{
		Version:    fileVersion,
		Seeds:      v.Seeds(),
		Salt:       base64.StdEncoding.EncodeToString(v.salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, nil)),
	}
	out, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault file: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, append(append([]byte{}, utf8BOM...), out...), 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func readFile(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, fmt.Errorf("vault %s does not exist: %w", path, os.ErrNotExist)
		}
		return f, fmt.Errorf("failed to read vault: %w", err)
	}
	if len(raw) == 0 {
		return f, fmt.Errorf("vault %s is empty", path)
	}
	if len(raw) >= 3 && raw[0] == utf8BOM[0] && raw[1] == utf8BOM[1] && raw[2] == utf8BOM[2] {
		raw = raw[3:]
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("failed to unmarshal vault file: %w", err)
	}
	if f.Version != fileVersion {
		return f, fmt.Errorf("unsupported vault version %d", f.Version)
	}
	return f, nil
}

// Command coldsigner runs the offline signer against a local database.
// Configuration comes from COLDSIGNER_* variables; passwords are prompted.
//
// Usage: coldsigner <command> [args]
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AlexZinkM/cold-signer/internal/config"
	"github.com/AlexZinkM/cold-signer/internal/defaults"
	"github.com/AlexZinkM/cold-signer/internal/logger"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/qr"
	"github.com/AlexZinkM/cold-signer/internal/vault"
	"github.com/AlexZinkM/cold-signer/signer"
)

const usage = `usage: coldsigner <command> [args]

  init                                  write default networks into an empty database
  wipe                                  erase everything and restore defaults
  decode <payload-hex>                  show a payload without acting on it
  update <payload-hex>                  show an update payload and commit it on confirmation
  commit <checksum>                     commit a staged update
  sign <payload-hex> [comment]          sign a transaction or message, QR goes to COLDSIGNER_QR_FILE
  bulk <payload-hex> [comment]          sign a bulk payload
  import-derivations <payload-hex> <seed>
  new-seed <name>                       generate a seed phrase and store it in the vault
  seeds                                 list seeds and their identities
  remove-seed <name>                    forget a seed on the device and in the vault
  networks                              list networks
  remove-network <network-key>
  remove-metadata <name> <version>
  history [order]
  clear-history
  change-vault-password`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()
	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	def, err := loadDefaults(cfg.DefaultsFile)
	if err != nil {
		return err
	}

	d, err := signer.Open(config.GetDBPath(), signer.Options{Logger: log})
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.WithError(err).Error("failed to close database")
		}
	}()

	c := &cli{device: d, log: log, defaults: def, qrSize: cfg.QRSize, qrFile: cfg.QRFile, in: bufio.NewReader(os.Stdin)}
	return c.dispatch(command, args)
}

func loadDefaults(path string) (defaults.Defaults, error) {
	if path == "" {
		return defaults.Load()
	}
	return defaults.LoadFile(path)
}

type cli struct {
	device   *signer.Device
	log      *logrus.Logger
	defaults defaults.Defaults
	qrSize   int
	qrFile   string
	in       *bufio.Reader
}

func (c *cli) dispatch(command string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)\n%s", command, n, usage)
		}
		return nil
	}
	switch command {
	case "init":
		if err := c.device.Init(c.defaults); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("database initialized"))
		return nil
	case "wipe":
		if !c.confirm("erase all seeds, networks and history?") {
			return nil
		}
		if err := c.device.Wipe(c.defaults); err != nil {
			return err
		}
		fmt.Println(warningStyle.Render("device wiped"))
		return nil
	case "decode":
		if err := need(1); err != nil {
			return err
		}
		a, err := c.device.HandlePayload(args[0])
		if err != nil {
			return err
		}
		fmt.Print(renderAction(a))
		return nil
	case "update":
		if err := need(1); err != nil {
			return err
		}
		return c.update(args[0])
	case "commit":
		if err := need(1); err != nil {
			return err
		}
		checksum, err := parseChecksum(args[0])
		if err != nil {
			return err
		}
		if err := c.device.Commit(checksum); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("committed"))
		return nil
	case "sign":
		if err := need(1); err != nil {
			return err
		}
		return c.sign(args[0], optional(args, 1))
	case "bulk":
		if err := need(1); err != nil {
			return err
		}
		return c.bulk(args[0], optional(args, 1))
	case "import-derivations":
		if err := need(2); err != nil {
			return err
		}
		return c.importDerivations(args[0], args[1])
	case "new-seed":
		if err := need(1); err != nil {
			return err
		}
		return c.newSeed(args[0])
	case "seeds":
		return c.seeds()
	case "remove-seed":
		if err := need(1); err != nil {
			return err
		}
		return c.removeSeed(args[0])
	case "networks":
		return c.networks()
	case "remove-network":
		if err := need(1); err != nil {
			return err
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			return fmt.Errorf("invalid network key: %w", err)
		}
		key, err := model.NetworkSpecsKeyFromBytes(raw)
		if err != nil {
			return err
		}
		return c.device.RemoveNetwork(key)
	case "remove-metadata":
		if err := need(2); err != nil {
			return err
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid metadata version: %w", err)
		}
		return c.device.RemoveMetadata(args[0], uint32(version))
	case "history":
		if len(args) > 0 {
			order, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid history order: %w", err)
			}
			e, err := c.device.HistoryEntry(uint32(order))
			if err != nil {
				return err
			}
			fmt.Print(renderEntry(e))
			return nil
		}
		entries, err := c.device.History()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Print(renderEntry(e))
		}
		return nil
	case "clear-history":
		return c.device.ClearHistory()
	case "change-vault-password":
		return c.changeVaultPassword()
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func (c *cli) update(raw string) error {
	a, err := c.device.HandlePayload(raw)
	if err != nil {
		return err
	}
	fmt.Print(renderAction(a))
	stub, ok := a.(signer.Stub)
	if !ok {
		return nil
	}
	if !c.confirm("accept this update?") {
		return nil
	}
	if err := c.device.Commit(stub.Checksum); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("committed"))
	return nil
}

func (c *cli) sign(raw, comment string) error {
	a, err := c.device.HandlePayload(raw)
	if err != nil {
		return err
	}
	fmt.Print(renderAction(a))
	pending, ok := a.(signer.SignPending)
	if !ok {
		return nil
	}
	if !c.confirm("sign?") {
		return nil
	}

	v, err := c.openVault()
	if err != nil {
		return err
	}
	defer v.Close()
	phrase, err := v.Phrase(pending.Author.SeedName)
	if err != nil {
		return err
	}

	checksum := pending.Checksum
	for {
		var password string
		if pending.Author.HasPassword {
			pw, err := config.PromptPassword("Derivation password: ", true)
			if err != nil {
				return err
			}
			password = string(pw)
			clear(pw)
		}
		sig, err := c.device.Sign(checksum, phrase, password, comment)
		var wp *model.WrongPasswordError
		if errors.As(err, &wp) {
			fmt.Println(warningStyle.Render(fmt.Sprintf("wrong password, attempt %d", wp.Counter)))
			checksum = wp.Checksum
			continue
		}
		if err != nil {
			return err
		}
		return c.printSignature(sig.Hex(), c.qrFile)
	}
}

func (c *cli) bulk(raw, comment string) error {
	a, err := c.device.HandlePayload(raw)
	if err != nil {
		return err
	}
	fmt.Print(renderAction(a))
	pending, ok := a.(signer.BulkSign)
	if !ok {
		return nil
	}
	if !c.confirm(fmt.Sprintf("sign %d transactions?", len(pending.Transactions))) {
		return nil
	}

	v, err := c.openVault()
	if err != nil {
		return err
	}
	defer v.Close()
	bs, _, err := c.device.StartBulk(pending.Checksum, v, comment)
	if err != nil {
		return err
	}
	for {
		switch s := bs.State().(type) {
		case signer.Ready:
			for i, sig := range s.Signatures {
				if err := c.printSignature(sig.Hex(), numbered(c.qrFile, i+1)); err != nil {
					return err
				}
			}
			return nil
		case signer.RequestPassword:
			pw, err := config.PromptPassword(fmt.Sprintf("Password for transaction %d (attempt %d): ", s.Index+1, s.Counter), true)
			if err != nil {
				return err
			}
			_, err = bs.SubmitPassword(string(pw))
			clear(pw)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected bulk state %T", s)
		}
	}
}

func (c *cli) importDerivations(raw, seed string) error {
	a, err := c.device.HandlePayload(raw)
	if err != nil {
		return err
	}
	fmt.Print(renderAction(a))
	preview, ok := a.(signer.DerivationsPreview)
	if !ok {
		return nil
	}
	if !c.confirm(fmt.Sprintf("import %d derivations for seed %s?", len(preview.Valid), seed)) {
		return nil
	}
	v, err := c.openVault()
	if err != nil {
		return err
	}
	defer v.Close()
	phrase, err := v.Phrase(seed)
	if err != nil {
		return err
	}
	n, err := c.device.ImportDerivations(preview.Checksum, seed, phrase)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("imported %d derivations", n)))
	return nil
}

func (c *cli) newSeed(name string) error {
	path := config.GetVaultPath()
	var v *vault.Vault
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		pw, err := newPassword()
		if err != nil {
			return err
		}
		v, err = vault.Create(path, pw)
		clear(pw)
		if err != nil {
			return err
		}
	} else if v, err = c.openVault(); err != nil {
		return err
	}
	defer v.Close()

	phrase, err := signer.GenerateRandomPhrase(24)
	if err != nil {
		return err
	}
	if err := c.device.CreateSeed(name, phrase, nil); err != nil {
		return err
	}
	if err := v.Add(name, phrase); err != nil {
		// the device must not keep identities the vault cannot sign for
		if rmErr := c.device.RemoveSeed(name); rmErr != nil {
			c.log.WithError(rmErr).Error("failed to roll back seed")
		}
		return err
	}
	fmt.Println(warningStyle.Render("write down the phrase, it is shown only once:"))
	fmt.Println(phrase)
	return nil
}

func (c *cli) seeds() error {
	names, err := c.device.Seeds()
	if err != nil {
		return err
	}
	// the vault lists its seeds in clear, so no password is needed here
	stored, err := vault.SeedNames(config.GetVaultPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, name := range names {
		if slices.Contains(stored, name) {
			fmt.Println(infoStyle.Render(name))
		} else {
			fmt.Println(infoStyle.Render(name) + " " + warningStyle.Render("(phrase not in vault)"))
		}
		ids, err := c.device.Identities(name)
		if err != nil {
			return err
		}
		for _, a := range ids {
			path := a.Path
			if a.HasPassword {
				path += "///***"
			}
			fmt.Printf("  %-24s %s %s\n", path, a.Encryption, mutedStyle.Render(hex.EncodeToString(a.PublicKey)))
		}
	}
	return nil
}

func (c *cli) networks() error {
	specs, err := c.device.Networks()
	if err != nil {
		return err
	}
	for _, s := range specs {
		nd, err := c.device.Network(s.Key())
		if err != nil {
			return err
		}
		versions := make([]string, 0, len(nd.Metadata))
		for _, m := range nd.Metadata {
			versions = append(versions, strconv.FormatUint(uint64(m.Version), 10))
		}
		fmt.Printf("%s %s %s metadata [%s]\n",
			infoStyle.Render(s.Title), s.Encryption, mutedStyle.Render(s.Key().String()), strings.Join(versions, ", "))
	}
	return nil
}

func (c *cli) changeVaultPassword() error {
	v, err := c.openVault()
	if err != nil {
		return err
	}
	defer v.Close()
	pw, err := newPassword()
	if err != nil {
		return err
	}
	defer clear(pw)
	if err := v.Rekey(pw); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("vault password changed"))
	return nil
}

func (c *cli) openVault() (*vault.Vault, error) {
	pw, err := config.PromptPassword("Vault password: ", false)
	if err != nil {
		return nil, err
	}
	defer clear(pw)
	return vault.Open(config.GetVaultPath(), pw)
}

// printSignature prints the signature hex and its QR code, written to file
// or, when file is "-", printed as base64 PNG.
func (c *cli) printSignature(sigHex, file string) error {
	fmt.Println(sigHex)
	if file == "-" {
		b64, err := qr.Base64(sigHex, c.qrSize)
		if err != nil {
			return err
		}
		fmt.Println(b64)
		return nil
	}
	if err := qr.WriteFile(file, sigHex, c.qrSize); err != nil {
		return err
	}
	fmt.Println(mutedStyle.Render("QR written to " + file))
	return nil
}

func (c *cli) removeSeed(name string) error {
	if !c.confirm(fmt.Sprintf("remove seed %s and all its identities?", name)) {
		return nil
	}
	v, err := c.openVault()
	if err != nil {
		return err
	}
	defer v.Close()
	if err := c.device.RemoveSeed(name); err != nil {
		return err
	}
	if err := v.Remove(name); err != nil && !errors.Is(err, vault.ErrUnknownSeed) {
		return err
	}
	fmt.Println(warningStyle.Render("seed " + name + " removed"))
	return nil
}

func (c *cli) confirm(question string) bool {
	fmt.Fprint(os.Stderr, question+" [y/N] ")
	line, err := c.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newPassword() ([]byte, error) {
	pw, err := config.PromptPassword("New vault password: ", false)
	if err != nil {
		return nil, err
	}
	again, err := config.PromptPassword("Repeat password: ", false)
	if err != nil {
		clear(pw)
		return nil, err
	}
	defer clear(again)
	if string(pw) != string(again) {
		clear(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func parseChecksum(s string) (model.H256, error) {
	var h model.H256
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return h, fmt.Errorf("invalid checksum: %w", err)
	}
	return h, nil
}

// numbered turns signature.png into signature-2.png.
func numbered(file string, n int) string {
	if file == "-" {
		return file
	}
	ext := filepath.Ext(file)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(file, ext), n, ext)
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

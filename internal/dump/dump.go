// Package dump writes matched transactions to disk, one JSON file per txid.
package dump

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jack695/Btc-mempool-watcher/internal/bitcoind"
)

const unknownTxID = "unknown_txid"

// ErrUnsafeTxID is returned for txids that would escape the dump directory.
var ErrUnsafeTxID = errors.New("txid is not a plain file name")

// Dir dumps transactions into a directory.
type Dir struct {
	path string
}

// New creates path if needed.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("error creating dump folder %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory the dumps are written to.
func (d *Dir) Path() string {
	return d.path
}

// FileName returns the file a transaction with txid is dumped to.
func (d *Dir) FileName(txid string) (string, error) {
	if txid == "" {
		txid = unknownTxID
	}
	if txid == "." || txid == ".." || strings.ContainsAny(txid, `/\`) || strings.ContainsRune(txid, os.PathSeparator) {
		return "", fmt.Errorf("%q: %w", txid, ErrUnsafeTxID)
	}
	return filepath.Join(d.path, txid+".json"), nil
}

// Dump writes tx as indented JSON and returns the file it was written to.
// An existing dump of the same txid is replaced.
func (d *Dir) Dump(tx *bitcoind.Transaction) (string, error) {
	name, err := d.FileName(tx.TxID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, tx.Raw, "", "  "); err != nil {
		return "", fmt.Errorf("error formatting transaction %s: %w", tx.TxID, err)
	}
	buf.WriteByte('\n')

	if err := writeFile(name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("error dumping transaction %s: %w", tx.TxID, err)
	}
	return name, nil
}

// writeFile replaces name atomically by renaming a temporary sibling.
func writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

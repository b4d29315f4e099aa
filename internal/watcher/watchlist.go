package watcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedLine is wrapped by every watch list parse error.
var ErrMalformedLine = errors.New("malformed watch list line")

// WatchedOutput identifies a previous output by its txid and vout.
type WatchedOutput struct {
	TxID  string
	Index uint32
}

func (o WatchedOutput) String() string {
	return o.TxID + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// WatchList is a set of watched outputs. It is never modified after loading.
type WatchList map[WatchedOutput]struct{}

// Contains reports whether txid:vout is watched.
func (w WatchList) Contains(txid string, vout uint32) bool {
	_, ok := w[WatchedOutput{TxID: txid, Index: vout}]
	return ok
}

// LoadWatchList reads the watch list file at path.
func LoadWatchList(path string) (WatchList, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening outputs file: %w", err)
	}
	defer file.Close()

	list, err := ParseWatchList(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// ParseWatchList reads one "txid,vout" pair per line. Blank lines and lines
// starting with # are ignored. Any other line that does not parse fails the
// whole list.
func ParseWatchList(r io.Reader) (WatchList, error) {
	list := make(WatchList)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		output, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		list[output] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading outputs: %w", err)
	}

	return list, nil
}

func parseLine(line string) (WatchedOutput, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return WatchedOutput{}, fmt.Errorf("%w: expected txid,output_index but got %d fields", ErrMalformedLine, len(fields))
	}

	txid := strings.TrimSpace(fields[0])
	if txid == "" {
		return WatchedOutput{}, fmt.Errorf("%w: empty txid", ErrMalformedLine)
	}

	index, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
	if err != nil {
		return WatchedOutput{}, fmt.Errorf("%w: invalid output index %q", ErrMalformedLine, fields[1])
	}

	return WatchedOutput{TxID: txid, Index: uint32(index)}, nil
}

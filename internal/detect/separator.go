package detect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSeparator is used when the first line gives no evidence of a
// semicolon-separated file.
const DefaultSeparator = ','

// Rewinder is the part of a scratch store the separator detector drives.
type Rewinder interface {
	io.Reader
	Rewind() error
}

// DetectSeparator reads the first line of the store and returns ';' when
// splitting it on semicolons yields more than one piece, ',' otherwise.
// The store is rewound on every path.
func DetectSeparator(store Rewinder) (sep byte, err error) {
	defer func() {
		if rerr := store.Rewind(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	line, err := bufio.NewReader(store).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return DefaultSeparator, fmt.Errorf("read first line: %w", err)
	}

	if len(strings.Split(line, ";")) > 1 {
		return ';', nil
	}
	return DefaultSeparator, nil
}

package state

import (
	"os"
	"time"

	"tplgen/splitter"
)

// newLocalEnv creates a new LocalEnv instance with default values, logger is
// set later when configuration is known.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:     time.Now(),
		Tokenizer: splitter.GoTokenizer{},
		Out:       os.Stdout,
	}
}

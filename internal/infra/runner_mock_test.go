package infra

import (
	"fmt"
	"strings"
	"sync"
)

// mockRunner records commands and serves canned responses keyed by the
// joined command line prefix.
type mockRunner struct {
	mu       sync.Mutex
	commands []string
	outputs  map[string][]byte
	errs     map[string]error
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		outputs: make(map[string][]byte),
		errs:    make(map[string]error),
	}
}

func (r *mockRunner) key(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (r *mockRunner) Run(name string, args ...string) error {
	k := r.key(name, args)
	r.mu.Lock()
	r.commands = append(r.commands, k)
	r.mu.Unlock()
	return r.lookupErr(k)
}

func (r *mockRunner) Output(name string, args ...string) ([]byte, error) {
	k := r.key(name, args)
	r.mu.Lock()
	r.commands = append(r.commands, k)
	r.mu.Unlock()

	if err := r.lookupErr(k); err != nil {
		return r.lookupOut(k), err
	}
	return r.lookupOut(k), nil
}

func (r *mockRunner) lookupErr(k string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, err := range r.errs {
		if strings.HasPrefix(k, prefix) {
			return err
		}
	}
	return nil
}

func (r *mockRunner) lookupOut(k string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, out := range r.outputs {
		if strings.HasPrefix(k, prefix) {
			return out
		}
	}
	return nil
}

func (r *mockRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func (r *mockRunner) assertRan(prefix string) error {
	for _, c := range r.ran() {
		if strings.HasPrefix(c, prefix) {
			return nil
		}
	}
	return fmt.Errorf("no command starting with %q ran; got %v", prefix, r.ran())
}

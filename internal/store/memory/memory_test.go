package memory_test

import (
	"testing"

	"bigbag/internal/store"
	"bigbag/internal/store/memory"
	"bigbag/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

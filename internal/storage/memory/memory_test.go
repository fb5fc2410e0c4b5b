package memory_test

import (
	"testing"

	"github.com/ncrq/authguard/internal/storage"
	"github.com/ncrq/authguard/internal/storage/memory"
	"github.com/ncrq/authguard/internal/storage/storagetest"
)

func TestMemoryAdapter(t *testing.T) {
	storagetest.RunTestSuite(t, func() storage.Adapter { return memory.New() })
}

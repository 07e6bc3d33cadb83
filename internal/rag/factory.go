package rag

import (
	"context"
	"log/slog"
)

// Backend enumerates the supported vector store backends.
type Backend string

const (
	// BackendQdrant selects the persistent Qdrant store.
	BackendQdrant Backend = "qdrant"
	// BackendMemory selects the in-process linear-scan store.
	BackendMemory Backend = "memory"
)

// StoreConfig holds the settings needed to open a vector store.
type StoreConfig struct {
	// Backend selects the store implementation. Defaults to qdrant.
	Backend Backend

	// Dimensions is the embedding vector size for the collection.
	Dimensions int

	// Qdrant holds connection settings for the qdrant backend.
	Qdrant QdrantConfig
}

// OpenStore selects and constructs the vector store once at startup. If the
// qdrant backend is configured but unreachable, it degrades to the in-process
// MemoryStore with a single WARN log rather than failing — retrieval quality
// is reduced, not availability. An explicitly selected memory backend never
// falls over further. The returned store is used for the process lifetime;
// there is no mid-session backend swapping.
//
// The returned ServiceStatus records the requested vs active backend so a
// fallback stays visible in stats after the startup log scrolls away.
func OpenStore(ctx context.Context, cfg *StoreConfig, log *slog.Logger) (VectorStore, ServiceStatus) {
	if cfg.Backend == BackendMemory {
		log.Info("vector store: using in-process memory backend")
		return NewMemoryStore(cfg.Dimensions), ServiceStatus{
			Requested: string(BackendMemory),
			Active:    string(BackendMemory),
		}
	}

	qcfg := cfg.Qdrant
	qcfg.VectorSize = uint64(cfg.Dimensions) //nolint:gosec // dimensions are small and positive

	store, err := NewQdrantStore(ctx, &qcfg)
	if err == nil {
		if pingErr := store.Ping(ctx); pingErr == nil {
			log.Info("vector store: qdrant backend ready",
				slog.String("host", qcfg.Host),
				slog.String("collection", qcfg.Collection),
			)
			return store, ServiceStatus{
				Requested: string(BackendQdrant),
				Active:    string(BackendQdrant),
			}
		} else {
			err = pingErr
			_ = store.Close()
		}
	}

	log.Warn("vector store: qdrant unreachable, degrading to in-process memory backend",
		slog.String("host", qcfg.Host),
		slog.Any("error", err),
	)
	return NewMemoryStore(cfg.Dimensions), ServiceStatus{
		Requested: string(BackendQdrant),
		Active:    string(BackendMemory),
		Degraded:  true,
	}
}

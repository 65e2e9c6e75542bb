//go:build integration

// MySQL tests run against a throwaway container.
// Run with: go test -tags=integration ./internal/datastore/repository/...
package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/petmood/internal/datastore"
	"github.com/tphakala/petmood/internal/datastore/entities"
	"github.com/tphakala/petmood/internal/logger"
)

func setupMySQL(t *testing.T) datastore.Manager {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("petmood_test"),
		tcmysql.WithUsername("petmood"),
		tcmysql.WithPassword("petmood"),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate mysql container: %v", err)
		}
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	m, err := datastore.NewMySQLManager(&datastore.MySQLConfig{
		Host:     host,
		Port:     port.Port(),
		Username: "petmood",
		Password: "petmood",
		Database: "petmood_test",
	}, datastore.Options{Logger: logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Initialize())
	require.NoError(t, m.Ping(ctx))
	return m
}

func TestMySQLHistoryRoundTrip(t *testing.T) {
	m := setupMySQL(t)
	assert.True(t, m.IsMySQL())

	ctx := t.Context()
	pet := &entities.Pet{PetName: "Nala", PetType: "dog"}
	require.NoError(t, NewPetRepository(m.DB(), nil).Create(ctx, pet))

	repo := NewHistoryRepository(m.DB(), nil)
	for _, emotion := range []string{"happy", "relaxed"} {
		require.NoError(t, repo.Save(ctx, SpeciesDog, &HistoryRecord{
			PetID:         pet.ID,
			Emotion:       emotion,
			Confidence:    0.75,
			Probabilities: map[string]float64{"angry": 0.05, "happy": 0.1, "relaxed": 0.75, "sad": 0.1},
		}))
	}

	entries, err := repo.List(ctx, SpeciesDog, pet.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "relaxed", entries[0].Emotion)
	require.NotNil(t, entries[0].PetName)
	assert.Equal(t, "Nala", *entries[0].PetName)

	require.ErrorIs(t, repo.Save(ctx, SpeciesDog, &HistoryRecord{PetID: pet.ID + 1, Emotion: "sad"}), ErrPetNotFound)
}

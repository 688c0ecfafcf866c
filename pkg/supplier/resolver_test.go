package supplier

import (
	"context"
	"errors"
	"testing"

	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTaxId(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"20123456789", "20-12345678-9", true},
		{"20-12345678-9", "20-12345678-9", true},
		{" 20.123.456.78 9 ", "20-12345678-9", true},
		{"CUIT: 30/71234567/1", "30-71234567-1", true},
		{"123", "", false},
		{"201234567890", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeTaxId(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the existing supplier on a repeated tax id", func(t *testing.T) {
		// given
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)

		// when
		first, err := resolver.Resolve(ctx, 1, Input{Name: "Corralón Sur", TaxId: "20123456789", City: "Rosario"})
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, 1, Input{Name: "Corralón Sur SA", TaxId: "20-12345678-9", City: "Funes"})
		require.NoError(t, err)

		// then
		assert.Equal(t, Resolution{Id: first.Id, Created: true, Deduped: true}, first)
		assert.Equal(t, Resolution{Id: first.Id, Created: false, Deduped: true}, second)
		stored, err := repo.Get(ctx, 1, first.Id)
		require.NoError(t, err)
		assert.Equal(t, "Funes", stored.City)
		assert.Equal(t, "20-12345678-9", *stored.TaxId)
		assert.Equal(t, 1, repo.Count())
	})

	t.Run("should keep stored fiscal fields a repeated receipt leaves empty", func(t *testing.T) {
		// given
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)
		first, err := resolver.Resolve(ctx, 1, Input{
			Name:            "Corralón Sur",
			TaxId:           "20123456789",
			Address:         "Av. Pellegrini 1200",
			City:            "Rosario",
			Province:        "Santa Fe",
			FiscalCondition: "Responsable Inscripto",
		})
		require.NoError(t, err)

		// when
		second, err := resolver.Resolve(ctx, 1, Input{Name: "Corralón Sur SA", TaxId: "20-12345678-9", City: "Funes"})
		require.NoError(t, err)

		// then
		assert.Equal(t, first.Id, second.Id)
		stored, err := repo.Get(ctx, 1, first.Id)
		require.NoError(t, err)
		assert.Equal(t, "Corralón Sur SA", stored.Name)
		assert.Equal(t, "Av. Pellegrini 1200", stored.Address)
		assert.Equal(t, "Funes", stored.City)
		assert.Equal(t, "Santa Fe", stored.Province)
		assert.Equal(t, "Responsable Inscripto", stored.FiscalCondition)
	})

	t.Run("should not share suppliers across tenants", func(t *testing.T) {
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)

		a, err := resolver.Resolve(ctx, 1, Input{Name: "A", TaxId: "20123456789"})
		require.NoError(t, err)
		b, err := resolver.Resolve(ctx, 2, Input{Name: "A", TaxId: "20123456789"})
		require.NoError(t, err)

		assert.NotEqual(t, a.Id, b.Id)
		assert.True(t, b.Created)
	})

	t.Run("should always insert without a valid tax id", func(t *testing.T) {
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)

		first, err := resolver.Resolve(ctx, 1, Input{Name: "Ferretería", TaxId: "123"})
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, 1, Input{Name: "Ferretería"})
		require.NoError(t, err)

		assert.NotEqual(t, first.Id, second.Id)
		assert.Equal(t, Resolution{Id: first.Id, Created: true, Deduped: false}, first)
		stored, err := repo.Get(ctx, 1, first.Id)
		require.NoError(t, err)
		assert.Nil(t, stored.TaxId)
	})

	t.Run("should require a name", func(t *testing.T) {
		_, err := NewResolver(NewRepositoryStub()).Resolve(ctx, 1, Input{TaxId: "20123456789"})

		var shapeErr *apperr.ShapeError
		assert.ErrorAs(t, err, &shapeErr)
	})

	t.Run("should return repository errors", func(t *testing.T) {
		repo := NewRepositoryStub()
		repo.FailWrites = errors.New("unique violation")

		_, err := NewResolver(repo).Resolve(ctx, 1, Input{Name: "A"})

		assert.ErrorIs(t, err, repo.FailWrites)
	})
}

func TestResolver_DeleteOrphan(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete a created supplier without tax id", func(t *testing.T) {
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)
		res, err := resolver.Resolve(ctx, 1, Input{Name: "A", TaxId: "12-3"})
		require.NoError(t, err)

		require.NoError(t, resolver.DeleteOrphan(ctx, 1, res))

		assert.Equal(t, 0, repo.Count())
	})

	t.Run("should keep deduped suppliers", func(t *testing.T) {
		repo := NewRepositoryStub()
		resolver := NewResolver(repo)
		res, err := resolver.Resolve(ctx, 1, Input{Name: "A", TaxId: "20123456789"})
		require.NoError(t, err)

		require.NoError(t, resolver.DeleteOrphan(ctx, 1, res))

		assert.Equal(t, 1, repo.Count())
	})
}

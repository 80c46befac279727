package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceKind(t *testing.T) {
	for _, kind := range ReferenceKinds {
		got, err := ParseReferenceKind(" " + string(kind) + " ")
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := ParseReferenceKind("tickets")
	assert.Error(t, err)
}

func TestReferenceInputNormalize(t *testing.T) {
	in := ReferenceInput{Name: " Ana ", Email: strPtr(" ana@example.com "), Sector: strPtr("TI")}

	t.Run("technician keeps email only", func(t *testing.T) {
		got := in.Normalize(KindTechnician)
		assert.Equal(t, "Ana", got.Name)
		require.NotNil(t, got.Email)
		assert.Equal(t, "ana@example.com", *got.Email)
		assert.Nil(t, got.Sector)
	})

	t.Run("user keeps email and sector", func(t *testing.T) {
		got := in.Normalize(KindUser)
		require.NotNil(t, got.Sector)
		assert.Equal(t, "TI", *got.Sector)
		assert.NotNil(t, got.Email)
	})

	t.Run("sector keeps name only", func(t *testing.T) {
		got := in.Normalize(KindSector)
		assert.Nil(t, got.Email)
		assert.Nil(t, got.Sector)
	})

	t.Run("blank optional fields become nil", func(t *testing.T) {
		got := ReferenceInput{Name: "Ana", Email: strPtr("  ")}.Normalize(KindUser)
		assert.Nil(t, got.Email)
	})
}

func TestReferenceInputValidate(t *testing.T) {
	assert.NoError(t, ReferenceInput{Name: "Ana"}.Validate())
	assert.Error(t, ReferenceInput{Name: ""}.Validate())
	assert.Error(t, ReferenceInput{Name: "Ana", Email: strPtr("not-an-email")}.Validate())
}

func TestReferencePatchApply(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ref := NewReference("r-1", ReferenceInput{Name: "Ana", Email: strPtr("ana@example.com")}, now)
	require.True(t, ref.Active)

	inactive := false
	got := ReferencePatch{Active: &inactive, Email: strPtr("")}.Normalize(KindTechnician).Apply(ref)
	assert.False(t, got.Active)
	assert.Nil(t, got.Email)
	assert.Equal(t, "Ana", got.Name)

	renamed := ReferencePatch{Name: strPtr(" Ana Paula ")}.Normalize(KindTechnician).Apply(ref)
	assert.Equal(t, "Ana Paula", renamed.Name)

	assert.Error(t, ReferencePatch{Name: strPtr(" ")}.Normalize(KindSector).Validate())
	assert.True(t, ReferencePatch{Email: strPtr("x@y")}.Normalize(KindSector).IsEmpty())
}

func TestActiveNames(t *testing.T) {
	refs := []Reference{
		{Name: "Ana", Active: true},
		{Name: "Bruno", Active: false},
		{Name: "Carla", Active: true},
	}
	assert.Equal(t, []string{"Ana", "Carla"}, ActiveNames(refs))
	assert.Empty(t, ActiveNames(nil))
}

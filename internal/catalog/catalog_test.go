package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/shared"
)

func TestParseUnits(t *testing.T) {
	require.Equal(t, []string{"Unidad", "Docena", "M²"}, ParseUnits(" Unidad, Docena ,,M², Unidad , "))
	require.Empty(t, ParseUnits(" , ,"))
}

func TestAddMaterial(t *testing.T) {
	c := New(nil)

	m, err := c.Add("  Ladrillo de Barro ", []string{"Unidad", " Unidad", "", "Millar"})
	require.NoError(t, err)
	require.Equal(t, "Ladrillo de Barro", m.Name)
	require.Equal(t, []string{"Unidad", "Millar"}, m.Units)
	require.Equal(t, 1, c.Len())

	_, err = c.Add("Ladrillo de Barro", []string{"Unidad"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 1, c.Len())
}

func TestAddMaterialRejectsBlankInput(t *testing.T) {
	c := New(nil)

	_, err := c.Add(" ", []string{" ", ""})
	require.ErrorIs(t, err, shared.ErrValidation)
	fields := shared.Fields(err)
	require.Len(t, fields, 2)
	require.Equal(t, "name", fields[0].Field)
	require.Equal(t, "units", fields[1].Field)
	require.Zero(t, c.Len())
}

func TestExtendAndResolve(t *testing.T) {
	c := New(Defaults())

	require.NoError(t, c.Resolve("Arena Fina de Río", "Saco"))

	err := c.Resolve("Arena Fina de Río", "Carretada")
	var unknown *UnknownMaterialError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "Carretada", unknown.Unit)
	require.ErrorIs(t, err, ErrUnknownMaterial)

	m, err := c.Extend("Arena Fina de Río", []string{"Carretada", "Saco"})
	require.NoError(t, err)
	require.Equal(t, []string{"Metro Cúbico (m³)", "Saco", "Carretada"}, m.Units)
	require.NoError(t, c.Resolve("Arena Fina de Río", "Carretada"))

	_, err = c.Extend("  Grava ", []string{"Saco"})
	require.ErrorIs(t, err, ErrUnknownMaterial)
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "Grava", unknown.Item)
	require.ErrorIs(t, c.Resolve("Grava", "Saco"), ErrUnknownMaterial)
}

func TestMaterialsReturnsCopies(t *testing.T) {
	c := New([]Material{{Name: "Bloque", Units: []string{"Unidad"}}})

	list := c.Materials()
	list[0].Units[0] = "mutated"

	m, ok := c.Get("Bloque")
	require.True(t, ok)
	require.Equal(t, []string{"Unidad"}, m.Units)
}

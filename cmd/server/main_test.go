package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"centropos/backend/internal/config"
	"centropos/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestPrepareCatalogFallsBackToConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventory("")

	require.NoError(t, prepareCatalog(ctx, config.Config{DefaultLocation: "Front"}, inv, zap.NewNop()))
	loc, err := inv.DefaultLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Front", loc)

	require.NoError(t, prepareCatalog(ctx, config.Config{DefaultLocation: "Back"}, inv, zap.NewNop()))
	loc, err = inv.DefaultLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Front", loc, "an existing default is kept")
}

func TestPrepareCatalogAppliesSeedWorkbook(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.xlsx")

	file := excelize.NewFile()
	require.NoError(t, file.SetSheetName("Sheet1", "uoms"))
	require.NoError(t, file.SetSheetRow("uoms", "A1", &[]any{"item_code", "uom", "rate"}))
	require.NoError(t, file.SetSheetRow("uoms", "A2", &[]any{"SKU-TEH-01", "Nos", "3000"}))
	require.NoError(t, file.SaveAs(path))
	require.NoError(t, file.Close())

	inv := memory.NewInventory("")
	require.NoError(t, prepareCatalog(ctx, config.Config{SeedWorkbook: path}, inv, zap.NewNop()))

	uoms, err := inv.LookupUomDetails(ctx, "sku-teh-01")
	require.NoError(t, err)
	require.Len(t, uoms, 1)
	assert.Equal(t, "3000", uoms[0].Rate.String())
}

func TestPrepareCatalogReportsMissingWorkbook(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.xlsx")
	_, statErr := os.Stat(missing)
	require.True(t, os.IsNotExist(statErr))

	err := prepareCatalog(context.Background(), config.Config{SeedWorkbook: missing}, memory.NewInventory(""), zap.NewNop())
	assert.Error(t, err)
}

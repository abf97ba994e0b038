package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"tradesim/types"
)

// assetListHeader is the required first row of an asset list file.
var assetListHeader = []string{"SYMBOL", "Full Name", "Asset Class", "Market", "Currency"}

// ReadAssetList parses the portfolio composition CSV. Each row names one
// instrument to trade; the asset class column selects the fee and tax
// profile.
func ReadAssetList(r io.Reader) ([]*types.Asset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading asset list header: %w", err)
	}
	if err := checkAssetListHeader(header); err != nil {
		return nil, err
	}

	var assets []*types.Asset
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading asset list line %d: %w", line, err)
		}
		class, err := classForName(record[2])
		if err != nil {
			return nil, fmt.Errorf("asset list line %d: %w", line, err)
		}
		symbol := strings.TrimSpace(record[0])
		if symbol == "" {
			return nil, fmt.Errorf("%w: asset list line %d has an empty symbol", types.ErrInvalidArgument, line)
		}
		assets = append(assets, types.NewAsset(
			class,
			strings.TrimSpace(record[1]),
			symbol,
			strings.TrimSpace(record[3]),
			strings.TrimSpace(record[4]),
		))
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: asset list has no rows", types.ErrInvalidArgument)
	}
	return assets, nil
}

// LoadAssetList reads an asset list from a file.
func LoadAssetList(path string) ([]*types.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset list: %w", err)
	}
	defer f.Close()
	assets, err := ReadAssetList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return assets, nil
}

func checkAssetListHeader(header []string) error {
	if len(header) != len(assetListHeader) {
		return fmt.Errorf("%w: asset list header has %d columns, want %d",
			types.ErrInvalidArgument, len(header), len(assetListHeader))
	}
	for i, want := range assetListHeader {
		if strings.TrimSpace(header[i]) != want {
			return fmt.Errorf("%w: asset list column %d is %q, want %q",
				types.ErrInvalidArgument, i+1, header[i], want)
		}
	}
	return nil
}

func classForName(name string) (*types.AssetClass, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "equity":
		return types.Equity, nil
	case "etc":
		return types.ETC, nil
	case "etf":
		return types.ETF, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset class %q", types.ErrInvalidArgument, name)
	}
}

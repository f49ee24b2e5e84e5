package recipes

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"recipebox/models"
)

// DecodeDataset reads a JSON array of raw recipe objects.
func DecodeDataset(r io.Reader) ([]models.RawRecipe, error) {
	var records []models.RawRecipe
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode catalog dataset: %w", err)
	}
	if records == nil {
		records = []models.RawRecipe{}
	}
	return records, nil
}

// LoadDataset opens and decodes the dataset file at path.
func LoadDataset(path string) ([]models.RawRecipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog dataset: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

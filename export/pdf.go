package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"go.mongodb.org/mongo-driver/bson"

	"recipebox/models"
)

const (
	qrSide      = 24.0
	pageBreakAt = 230.0
)

// FavoritesPDF writes one section per recipe, in the order given: title,
// healthiness, ingredients, instructions and a QR code linking to the source.
func FavoritesPDF(w io.Writer, owner string, recipes []models.Recipe, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Favorite recipes", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Favorite recipes")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("%s, %s", owner, generatedAt.Format("2 Jan 2006 15:04 MST"))))
	pdf.Ln(10)

	if len(recipes) == 0 {
		pdf.SetFont("Arial", "I", 12)
		pdf.Cell(0, 10, "No favorites yet.")
	}

	for i, recipe := range recipes {
		if pdf.GetY() > pageBreakAt {
			pdf.AddPage()
		}
		top := pdf.GetY()

		pdf.SetFont("Arial", "B", 14)
		pdf.MultiCell(150, 7, tr(fmt.Sprintf("%d. %s", i+1, recipe.Title)), "", "L", false)
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Healthiness: %g", recipe.Healthiness))
		pdf.Ln(7)

		if png, err := RecipeQR(recipe.URL, DefaultQRSize); err == nil {
			name := "qr-" + recipe.ID.Hex()
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
			pdf.ImageOptions(name, 176, top, qrSide, qrSide, false, opts, 0, recipe.URL)
		}

		if lines := ingredientLines(recipe.Ingredients); len(lines) > 0 {
			pdf.SetFont("Arial", "B", 11)
			pdf.Cell(0, 6, "Ingredients")
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 10)
			for _, line := range lines {
				pdf.MultiCell(150, 5, tr("- "+line), "", "L", false)
			}
		}

		if text := instructionsText(recipe.Instructions); text != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.Cell(0, 6, "Instructions")
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 5, tr(text), "", "L", false)
		}

		if pdf.GetY() < top+qrSide {
			pdf.SetY(top + qrSide)
		}
		pdf.Ln(6)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render favorites pdf: %w", err)
	}
	return pdf.Output(w)
}

// ingredientLines renders "name: descriptor" lines sorted by name.
func ingredientLines(ingredients map[string]any) []string {
	names := make([]string, 0, len(ingredients))
	for name := range ingredients {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		switch v := ingredients[name].(type) {
		case nil:
			lines = append(lines, name)
		case string:
			if v == "" {
				lines = append(lines, name)
			} else {
				lines = append(lines, name+": "+v)
			}
		default:
			lines = append(lines, fmt.Sprintf("%s: %v", name, v))
		}
	}
	return lines
}

// instructionsText flattens instructions stored either as text or as a list of steps.
func instructionsText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bson.A:
		return instructionsText([]any(t))
	case []any:
		steps := make([]string, 0, len(t))
		for i, step := range t {
			steps = append(steps, fmt.Sprintf("%d. %v", i+1, step))
		}
		return strings.Join(steps, "\n")
	case []string:
		steps := make([]string, 0, len(t))
		for i, step := range t {
			steps = append(steps, fmt.Sprintf("%d. %s", i+1, step))
		}
		return strings.Join(steps, "\n")
	default:
		return fmt.Sprint(t)
	}
}

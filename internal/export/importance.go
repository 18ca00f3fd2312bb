package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/brightpath/tutorsim/internal/churn"
)

// ImportanceName is the churn feature-importance report file.
const ImportanceName = "churn_feature_importance.csv"

// WriteFeatureImportance writes the fitted churn-model coefficients, highest
// weight first, as the training command's report artifact.
func WriteFeatureImportance(dir string, weights []churn.FeatureWeight) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir %s", dir)
	}
	path := filepath.Join(dir, ImportanceName)
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"feature", "importance"}); err != nil {
		return eris.Wrap(err, "export: write importance header")
	}
	for _, fw := range weights {
		if err := w.Write([]string{fw.Feature, strconv.FormatFloat(fw.Weight, 'f', 6, 64)}); err != nil {
			return eris.Wrap(err, "export: write importance row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush importance")
}

package tracklet

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadLabels reads the class names from the given text file.  It should
// contain one label per line in class index order, blank lines are skipped
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening labels file")
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading labels file")
	}

	return labels, nil
}

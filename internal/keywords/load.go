package keywords

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads one keyword per line from the provided file path.
// Blank lines and lines starting with '#' are skipped. A trailing '!' marks
// the keyword as flagged.
func LoadFile(path string) (words, flagged []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only keyword file.
			_ = cerr
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "!") {
			line = strings.TrimSpace(strings.TrimSuffix(line, "!"))
			if line == "" {
				continue
			}
			flagged = append(flagged, line)
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(words) == 0 {
		return nil, nil, fmt.Errorf("keyword file is empty")
	}
	return words, flagged, nil
}

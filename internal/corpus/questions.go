package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/ctxcompress/internal/models"
)

var errNotObject = errors.New("not a JSON object")

// ParseError reports a question-file line that is not a valid JSON object.
type ParseError struct {
	Path string
	Line int // 1-based
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: invalid question: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadQuestions reads one JSON object per non-blank line of path, in file order.
func LoadQuestions(path string) ([]models.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question file: %w", err)
	}
	defer f.Close()

	questions, err := ReadQuestions(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return questions, nil
}

// ReadQuestions parses questions from r. Blank lines are skipped.
// Lines are read without a length limit; a whole corpus may sit on one line.
func ReadQuestions(r io.Reader) ([]models.Question, error) {
	br := bufio.NewReader(r)
	questions := []models.Question{}

	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read question file: %w", readErr)
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if line[0] != '{' {
				return nil, &ParseError{Path: "<input>", Line: lineNo, Err: errNotObject}
			}
			var q models.Question
			if err := json.Unmarshal(line, &q); err != nil {
				return nil, &ParseError{Path: "<input>", Line: lineNo, Err: err}
			}
			questions = append(questions, q)
		}

		if readErr != nil {
			return questions, nil
		}
	}
}

package browser

import (
	"strings"
	"testing"
)

func TestReadyExpr(t *testing.T) {
	expr := readyExpr(`input[name="SearchFormEx1$ACSTextBox_Book"]`)

	// The selector is embedded quoted and escaped for the JS string literal.
	if !strings.Contains(expr, `document.querySelector("input[name=\"SearchFormEx1$ACSTextBox_Book\"]")`) {
		t.Errorf("selector not embedded safely:\n%s", expr)
	}
	if !strings.Contains(expr, "el.complete && el.naturalWidth > 1") {
		t.Errorf("image readiness check missing:\n%s", expr)
	}
}

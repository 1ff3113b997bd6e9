package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/lockbox/internal/filex"
)

// Export encrypts the whole collection under a freshly generated 16-word
// recovery phrase and writes the envelope to a file. The phrase is shown
// once and never stored.
func (a *App) Export(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Enter export file path", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}

	data, ok := a.call(ctx, "mnemonic.generate", nil)
	if !ok {
		return nil
	}
	var gen map[string][]string
	if err := json.Unmarshal(data, &gen); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	mnemonic := gen["mnemonic"]

	data, ok = a.call(ctx, "export", map[string]any{"secret": secret, "mnemonic": mnemonic})
	if !ok {
		return nil
	}
	if err := filex.WriteExport(path, data); err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}

	printlnFn("Exported to", path)
	printlnFn("Recovery phrase (write it down, it is not stored anywhere):")
	printlnFn(strings.Join(mnemonic, " "))
	return nil
}

// Import decrypts an export file with its recovery phrase and replaces the
// current collection.
func (a *App) Import(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Enter export file path", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	raw, err := filex.ReadExport(path)
	if err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}

	mnemonic, err := GetMnemonic(a.reader, "Enter the 16-word recovery phrase", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return nil
	}
	secret, ok := a.promptSecret()
	if !ok {
		return nil
	}

	data, ok := a.call(ctx, "import", map[string]any{
		"payload": json.RawMessage(raw), "mnemonic": mnemonic, "secret": secret,
	})
	if !ok {
		return nil
	}

	var out map[string]int
	if err := json.Unmarshal(data, &out); err == nil {
		printlnFn("Imported", out["imported"], "credentials")
	}
	return nil
}

// Package printer provides styled console output for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/margin/internal/core/styles"
)

type ctxKey struct{}

// Printer writes styled status lines to a writer.
type Printer struct {
	w io.Writer
}

// New creates a printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// WithCtx attaches a printer to the context.
func WithCtx(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer attached to the context, or a default stdout
// printer.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout)
}

// Printf writes a plain line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Successf writes a success line.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, styles.TextSuccessStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.w, styles.TextMutedStyle.Render("• ")+fmt.Sprintf(format, args...))
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, styles.TextErrorStyle.Render("! ")+fmt.Sprintf(format, args...))
}

// Errorf writes an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, styles.TextErrorStyle.Render("✗ ")+fmt.Sprintf(format, args...))
}

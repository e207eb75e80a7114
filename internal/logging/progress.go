package logging

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress is a single mpb bar. The zero value of a disabled Progress does nothing.
type Progress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// NewProgress starts a bar with total steps writing to w. A nil w disables output.
func NewProgress(w io.Writer, total int, label string) *Progress {
	if w == nil || total <= 0 {
		return &Progress{}
	}
	p := mpb.New(mpb.WithWidth(80), mpb.WithOutput(w))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(label+": "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)
	return &Progress{p: p, bar: bar}
}

// Increment advances the bar by one. Safe for concurrent use.
func (p *Progress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

// Wait completes the bar and blocks until it is rendered.
func (p *Progress) Wait() {
	if p.p == nil {
		return
	}
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.p.Wait()
}

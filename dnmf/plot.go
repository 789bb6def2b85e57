package dnmf

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveLossPlot renders the recorded average-loss series to an image file.
// The format follows the file extension (png, svg, pdf, ...).
func (l *Log) SaveLossPlot(path string) error {
	if len(l.Iterations) == 0 {
		return errors.New("no iteration records to plot")
	}

	p := plot.New()
	p.Title.Text = "average loss per group"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"

	points := make(plotter.XYs, len(l.Iterations))
	for i, record := range l.Iterations {
		points[i].X = float64(record.Iteration)
		points[i].Y = record.AverageLoss
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return errors.Wrap(err, "can't build loss line")
	}
	p.Add(plotter.NewGrid(), line)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

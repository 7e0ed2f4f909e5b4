package render

import (
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// FrameFigure composes child figures into one frame figure. Vertical frames
// stack children and sum heights; horizontal frames place them side by side
// and take the tallest.
func FrameFigure(config *visual.Frame, children []*Figure, style Style) (*Figure, error) {
	if len(children) == 0 {
		return nil, &Error{Reason: "frame requires at least one child figure"}
	}

	figure := &Figure{
		Title:  config.Title,
		Layout: config.Layout,
		Style:  style,
	}
	for _, child := range children {
		for _, table := range child.Tables {
			if !config.ShowTitles {
				table.Title = ""
			}
			figure.Tables = append(figure.Tables, table)
		}
	}

	if config.AutoHeight {
		figure.Height = frameHeight(config, children)
	}
	return figure, nil
}

func frameHeight(config *visual.Frame, children []*Figure) int {
	content := 0
	for _, child := range children {
		height := child.Height
		if height <= 0 {
			height = DefaultChildHeight
		}
		if config.Layout == visual.LayoutHorizontal {
			if height > content {
				content = height
			}
		} else {
			content += height
		}
	}
	if config.Layout != visual.LayoutHorizontal && len(children) > 1 {
		content += FrameChildSpacing * (len(children) - 1)
	}

	if config.Title != "" {
		content += TitleMargin
	}
	if config.ShowTitles {
		content += SubplotTitleMargin
	}
	return content
}

package summarizer

import (
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

const (
	fontName  = "Times New Roman"
	fontColor = "000000"
	bodySize  = 13
	titleSize = 16
)

var (
	reHeading    = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	reBullet     = regexp.MustCompile(`^[\-\*+]\s+(.+)$`)
	reEmphasis   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	inlineMarkup = strings.NewReplacer("**", "", "__", "", "`", "")
)

// docBuilder appends uniformly styled paragraphs to a document
type docBuilder struct {
	doc *docx.RootDoc
}

func newDocBuilder(title string) (*docBuilder, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}
	b := &docBuilder{doc: doc}
	b.heading(title, titleSize)
	return b, nil
}

func (b *docBuilder) run(p *docx.Paragraph, text string, size uint64, bold bool) {
	r := p.AddText(inlineMarkup.Replace(text)).Font(fontName).Size(size).Color(fontColor)
	if bold {
		r.Bold(true)
	}
}

func (b *docBuilder) heading(text string, size uint64) {
	b.run(b.doc.AddParagraph(""), text, size, true)
}

func (b *docBuilder) plain(text string) {
	b.run(b.doc.AddParagraph(""), text, bodySize, false)
}

// rich writes text with **bold** spans kept bold
func (b *docBuilder) rich(text string) {
	p := b.doc.AddParagraph("")
	last := 0
	for _, m := range reEmphasis.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			b.run(p, text[last:m[0]], bodySize, false)
		}
		b.run(p, text[m[2]:m[3]], bodySize, true)
		last = m[1]
	}
	if last < len(text) {
		b.run(p, text[last:], bodySize, false)
	}
}

func (b *docBuilder) blank() {
	b.doc.AddParagraph("")
}

// save writes through the partial sibling so a crash never leaves a
// truncated .docx behind
func (b *docBuilder) save(outputPath string) error {
	partial := fileutil.PartialPath(outputPath)
	if err := b.doc.SaveTo(partial); err != nil {
		_ = fileutil.Remove(partial)
		return err
	}
	return fileutil.Commit(outputPath)
}

// markdownToDocx renders the summary markdown: headings, bullets and bold.
func markdownToDocx(title, markdown, outputPath string) error {
	b, err := newDocBuilder(title)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || line == "---":
		case reHeading.MatchString(line):
			m := reHeading.FindStringSubmatch(line)
			b.heading(m[2], headingSize(len(m[1])))
		case reBullet.MatchString(line):
			b.rich("• " + reBullet.FindStringSubmatch(line)[1])
		default:
			b.rich(line)
		}
	}

	return b.save(outputPath)
}

// transcriptToDocx writes a plain transcript, one paragraph per line.
func transcriptToDocx(title, transcript, outputPath string) error {
	b, err := newDocBuilder(title)
	if err != nil {
		return err
	}
	b.blank()

	for _, line := range strings.Split(transcript, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.plain(line)
		}
	}

	return b.save(outputPath)
}

func headingSize(level int) uint64 {
	if level >= 4 {
		return bodySize
	}
	return uint64(titleSize + 1 - level)
}

// Command cstruct decodes a raw byte buffer against a struct/union/enum
// declaration found in preprocessed C source text, and prints the decoded
// field tree.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Abathargh/cstruct"
)

const (
	nameMessage = "usage: cstruct [flags] -tag <name>"
	helpMessage = `
cstruct parses the C struct/union/enum declarations found in a preprocessed
source file, then decodes a raw byte buffer against the named aggregate,
printing its field tree (name, offset, size, value).

Pass -file to point at the preprocessed source, -data to point at the raw
byte buffer to decode, and -tag for the aggregate name to decode. Use
-field to navigate to a single nested field by dotted path (e.g.
"header.length") and print just that value.
`

	helpUsage    = "show the help message"
	versionUsage = "print the version for this build"
	bareUsage    = "just print the data without table formatting"
	verboseUsage = "expand nested aggregate fields one level deep"
	hexUsage     = "render byte values as a hex/ASCII dump"
	fileUsage    = "preprocessed C source file declaring the aggregate"
	dataUsage    = "raw byte buffer file to decode"
	tagUsage     = "aggregate name to decode"
	offsetUsage  = "byte offset into the data file to start decoding at"
	fieldUsage   = "dotted field path to navigate to and print in isolation"
)

var Version = ""

func main() {
	if Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			Version = info.Main.Version
		}
	}

	var (
		help     bool
		version  bool
		bare     bool
		verbose  bool
		hexDump  bool
		file     string
		dataFile string
		tag      string
		offset   int
		field    string
	)

	fs := flag.NewFlagSet("cstruct", flag.ExitOnError)
	fs.BoolVar(&help, "help", false, helpUsage)
	fs.BoolVar(&version, "version", false, versionUsage)
	fs.BoolVar(&bare, "bare", false, bareUsage)
	fs.BoolVar(&verbose, "verbose", false, verboseUsage)
	fs.BoolVar(&hexDump, "hex", false, hexUsage)
	fs.StringVar(&file, "file", "", fileUsage)
	fs.StringVar(&dataFile, "data", "", dataUsage)
	fs.StringVar(&tag, "tag", "", tagUsage)
	fs.IntVar(&offset, "offset", 0, offsetUsage)
	fs.StringVar(&field, "field", "", fieldUsage)

	if err := fs.Parse(os.Args[1:]); err != nil {
		logErrorMessage("could not parse args: %s", err)
	}

	switch {
	case help:
		fmt.Printf("%s\n", nameMessage)
		fmt.Printf("%s\n", helpMessage)
		fs.PrintDefaults()
		return
	case version:
		fmt.Printf("cstruct %s\n", Version)
		return
	}

	if file == "" || tag == "" {
		logErrorMessage(nameMessage)
	}

	src, err := os.ReadFile(file)
	if err != nil {
		logErrorMessage("failed to open source file: %v", err)
	}

	var data []byte
	if dataFile != "" {
		data, err = os.ReadFile(dataFile)
		if err != nil {
			logErrorMessage("failed to open data file: %v", err)
		}
	}

	env := cstruct.NewEnv()
	env.AddSource(string(src))
	if err := env.Parse(); err != nil {
		logError(err)
	}

	val, err := env.Decode(tag, data, offset)
	if err != nil {
		logError(err)
	}

	if field != "" {
		for _, part := range strings.Split(field, ".") {
			val, err = navigate(val, part)
			if err != nil {
				logError(err)
			}
		}
	}

	if bare {
		printBare(tag, val, hexDump)
		return
	}

	fmt.Println(titleBox.Render(tag))
	printValueTable(tag, val, verbose, hexDump)

	if hexDump && val.Descriptor() != nil {
		fmt.Println(lipgloss.JoinHorizontal(
			lipgloss.Top,
			renderRawBox(val),
			renderDecodedBox(tag, val),
		))
	}
}

func navigate(v *cstruct.Value, part string) (*cstruct.Value, error) {
	if idx, err := strconv.Atoi(part); err == nil {
		return v.Index(idx)
	}
	return v.Field(part)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Width(15).
			Foreground(lipgloss.Color("#ececec")).
			Align(lipgloss.Center)

	rowStyle = lipgloss.NewStyle().
			Bold(false).
			Width(15).
			Foreground(lipgloss.Color("#aeaeae")).
			Align(lipgloss.Center)

	titleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(63).
			Foreground(lipgloss.Color("#AEAEAE")).
			Align(lipgloss.Center)
)

func printValueTable(name string, v *cstruct.Value, verbose, hexDump bool) {
	desc := v.Descriptor()
	if desc == nil {
		fmt.Println(describeScalar(v, hexDump))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			return rowStyle
		}).
		Headers("Field", "Offset", "Size", "Value")

	for _, f := range desc.Fields {
		fv, err := v.Field(f.Name)
		if err != nil {
			continue
		}
		t.Row(f.Name, strconv.Itoa(f.Offset), strconv.Itoa(f.Size), describeScalar(fv, hexDump))

		if verbose && fv.Descriptor() != nil {
			for _, sf := range fv.Descriptor().Fields {
				sub, err := fv.Field(sf.Name)
				if err != nil {
					continue
				}
				qualified := fmt.Sprintf("%s.%s", f.Name, sf.Name)
				t.Row(qualified, strconv.Itoa(f.Offset+sf.Offset), strconv.Itoa(sf.Size), describeScalar(sub, hexDump))
			}
		}
	}

	fmt.Println(t)
}

func printBare(name string, v *cstruct.Value, hexDump bool) {
	desc := v.Descriptor()
	if desc == nil {
		fmt.Fprintf(os.Stdout, "%s = %s\n", name, describeScalar(v, hexDump))
		return
	}
	for _, f := range desc.Fields {
		fv, err := v.Field(f.Name)
		if err != nil {
			continue
		}
		fmt.Fprintf(os.Stdout, "%s, offset: %d, size: %d, value: %s\n",
			f.Name, f.Offset, f.Size, describeScalar(fv, hexDump))
	}
}

// describeScalar renders a Value's current bytes. An aggregate renders as
// "<tag>", an integer leaf as decimal plus hex, a float leaf with %g. With
// hexDump, or for any other value, the raw bytes are rendered with readable
// ASCII bytes (32..126 inclusive) as their glyph and others as a hex escape.
func describeScalar(v *cstruct.Value, hexDump bool) string {
	if v.Descriptor() != nil {
		return fmt.Sprintf("<%s>", v.Descriptor().Tag)
	}
	if hexDump {
		return hexString(v.Raw())
	}
	if u, err := v.Uint(); err == nil {
		return fmt.Sprintf("%d (0x%x)", u, u)
	}
	if f, err := v.Float(); err == nil {
		return fmt.Sprintf("%g", f)
	}
	return hexString(v.Raw())
}

func hexString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if isReadableChar(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	return sb.String()
}

const (
	firstReadableChar = 32
	lastReadableChar  = 126
)

func isReadableChar(b byte) bool {
	return b >= firstReadableChar && b <= lastReadableChar
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(30).
			Margin(0, 1, 1, 0).
			Padding(1, 1, 1, 2).
			Align(lipgloss.Left)

	baseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B29BC5"))

	commentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#747893"))
)

// renderRawBox renders the facade's backing bytes as an offset-prefixed
// hex dump inside a rounded box, for side-by-side comparison with the
// decoded view.
func renderRawBox(v *cstruct.Value) string {
	var builder RenderBuilder
	builder.WriteComment("// raw bytes")
	builder.WriteNewline()

	raw := v.Raw()
	for i := 0; i < len(raw); i += 8 {
		end := i + 8
		if end > len(raw) {
			end = len(raw)
		}
		builder.WriteKeyword(fmt.Sprintf("%04x", i))
		builder.WriteBase("  ")
		for _, c := range raw[i:end] {
			builder.WriteBase(fmt.Sprintf("%02x ", c))
		}
		builder.WriteNewline()
	}

	return boxStyle.Render(builder.String())
}

// renderDecodedBox renders the decoded field values in a declaration-like
// shape, mirroring the raw box on its left.
func renderDecodedBox(name string, v *cstruct.Value) string {
	var builder RenderBuilder
	builder.WriteComment("// decoded")
	builder.WriteNewline()
	builder.WriteKeyword(name)
	builder.WriteBase(" {")
	builder.WriteNewline()
	for _, f := range v.Descriptor().Fields {
		fv, err := v.Field(f.Name)
		if err != nil {
			continue
		}
		builder.WriteBase("\t")
		builder.WriteKeyword(f.Name)
		builder.WriteBase(" = ")
		builder.WriteBase(describeScalar(fv, false))
		builder.WriteBase(";")
		builder.WriteNewline()
	}
	builder.WriteBase("};")

	return boxStyle.Render(builder.String())
}

type RenderBuilder struct {
	strings.Builder
}

func (b *RenderBuilder) WriteBase(s string) {
	b.Builder.WriteString(baseStyle.Render(s))
}

func (b *RenderBuilder) WriteKeyword(s string) {
	b.Builder.WriteString(keywordStyle.Render(s))
}

func (b *RenderBuilder) WriteComment(s string) {
	b.Builder.WriteString(commentStyle.Render(s))
}

func (b *RenderBuilder) WriteNewline() {
	b.Builder.WriteString("\n")
}

func logError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func logErrorMessage(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

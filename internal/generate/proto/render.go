package protogen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jptrs93/troto/internal/ir"
)

const indent = "  "

// Render returns the IDL document for f. Field numbers must already be
// assigned. The output depends only on f.
func Render(f *ir.File) []byte {
	var buf bytes.Buffer
	buf.WriteString("syntax = \"proto3\";\n")

	if len(f.Options) > 0 {
		buf.WriteString("\n")
		for _, opt := range f.Options {
			fmt.Fprintf(&buf, "option %s;\n", formatOption(opt))
		}
	}
	if len(f.Imports) > 0 {
		buf.WriteString("\n")
		for _, imp := range f.Imports {
			fmt.Fprintf(&buf, "import %s;\n", quote(imp))
		}
	}
	for _, decl := range f.Decls {
		buf.WriteString("\n")
		switch {
		case decl.Message != nil:
			writeMessage(&buf, decl.Message)
		case decl.Service != nil:
			writeService(&buf, decl.Service)
		}
	}
	return buf.Bytes()
}

func writeMessage(buf *bytes.Buffer, m *ir.Message) {
	if len(m.Options) == 0 && len(m.Fields) == 0 {
		fmt.Fprintf(buf, "message %s {}\n", m.Name)
		return
	}
	fmt.Fprintf(buf, "message %s {\n", m.Name)
	for _, opt := range m.Options {
		fmt.Fprintf(buf, "%soption %s;\n", indent, formatOption(opt))
	}
	if len(m.Options) > 0 && len(m.Fields) > 0 {
		buf.WriteString("\n")
	}
	written := make(map[*ir.Oneof]bool, len(m.Oneofs))
	for _, field := range m.Fields {
		if field.Oneof == nil {
			writeField(buf, indent, field)
			continue
		}
		if written[field.Oneof] {
			continue
		}
		written[field.Oneof] = true
		fmt.Fprintf(buf, "%soneof %s {\n", indent, field.Oneof.Name)
		for _, member := range m.Fields {
			if member.Oneof == field.Oneof {
				writeField(buf, indent+indent, member)
			}
		}
		fmt.Fprintf(buf, "%s}\n", indent)
	}
	buf.WriteString("}\n")
}

func writeField(buf *bytes.Buffer, prefix string, f *ir.Field) {
	buf.WriteString(prefix)
	switch {
	case f.IsOptional:
		buf.WriteString("optional ")
	case f.IsRepeated:
		buf.WriteString("repeated ")
	}
	fmt.Fprintf(buf, "%s %s = %d", fieldType(f), f.Name, f.Number)
	if len(f.Options) > 0 {
		parts := make([]string, len(f.Options))
		for i, opt := range f.Options {
			parts[i] = formatOption(opt)
		}
		fmt.Fprintf(buf, " [%s]", strings.Join(parts, ", "))
	}
	buf.WriteString(";\n")
}

func fieldType(f *ir.Field) string {
	if f.IsMap {
		value := f.MapValueKind.String()
		if f.MapValueMessage != "" {
			value = f.MapValueMessage
		}
		return fmt.Sprintf("map<%s, %s>", f.MapKeyKind, value)
	}
	if f.Kind == ir.KindMessage || f.Kind == ir.KindEnum {
		return f.MessageFullName
	}
	return f.Kind.String()
}

func writeService(buf *bytes.Buffer, s *ir.Service) {
	if len(s.Options) == 0 && len(s.Methods) == 0 {
		fmt.Fprintf(buf, "service %s {}\n", s.Name)
		return
	}
	fmt.Fprintf(buf, "service %s {\n", s.Name)
	for _, opt := range s.Options {
		fmt.Fprintf(buf, "%soption %s;\n", indent, formatOption(opt))
	}
	if len(s.Options) > 0 && len(s.Methods) > 0 {
		buf.WriteString("\n")
	}
	for _, m := range s.Methods {
		fmt.Fprintf(buf, "%srpc %s(%s) returns (%s)",
			indent, m.Name, streamType(m.InputType, m.ClientStreaming), streamType(m.OutputType, m.ServerStreaming))
		if len(m.Options) == 0 {
			buf.WriteString(";\n")
			continue
		}
		buf.WriteString(" {\n")
		for _, opt := range m.Options {
			fmt.Fprintf(buf, "%s%soption %s;\n", indent, indent, formatOption(opt))
		}
		fmt.Fprintf(buf, "%s}\n", indent)
	}
	buf.WriteString("}\n")
}

func streamType(name string, streaming bool) string {
	if streaming {
		return "stream " + name
	}
	return name
}

func formatOption(opt ir.Option) string {
	return opt.Name + " = " + formatValue(opt.Value)
}

// formatValue renders strings quoted and every other literal verbatim.
func formatValue(v ir.Value) string {
	if v.Kind == ir.ValueString {
		return quote(v.Text)
	}
	return v.Text
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

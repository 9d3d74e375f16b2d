// xmltext.go — подстановка плейсхолдеров в WordprocessingML.
//
// Word произвольно разбивает текст абзаца на несколько <w:t> (проверка
// орфографии, смена форматирования), поэтому "{{ NOME }}" может оказаться
// в трёх соседних узлах. Текст узлов одного абзаца склеивается, совпадения
// ищутся в склеенной строке, замена пишется в узел, где совпадение
// начинается, а покрытые им символы удаляются из остальных узлов.
package docx

import (
	"bytes"
	"html"
	"regexp"
	"strings"
)

// placeholderRe — плейсхолдер вида {{ KEY }} (пробелы внутри скобок допустимы).
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

var (
	textOpen     = []byte("<w:t")
	textClose    = []byte("</w:t>")
	paragraphEnd = []byte("</w:p>")
)

// Разрыв строки внутри run: закрываем текущий <w:t>, вставляем <w:br/>.
const lineBreak = `</w:t><w:br/><w:t xml:space="preserve">`

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// textNode — положение одного <w:t>…</w:t> в XML.
type textNode struct {
	start     int // начало "<w:t"
	openEnd   int // позиция после ">" открывающего тега
	closeAt   int // начало "</w:t>"
	end       int // позиция после "</w:t>"
	paragraph int // номер абзаца
}

// replacement — замена диапазона склеенного текста абзаца.
type replacement struct {
	start, end int
	xml        string // готовый XML-фрагмент (экранированный текст или разметка)
}

// substitute заменяет плейсхолдеры в XML-части.
// Значения из values экранируются, переводы строк превращаются в <w:br/>.
// Плейсхолдер imageKey заменяется разметкой, которую возвращает imageRun
// (если imageRun == nil, плейсхолдер изображения остаётся как есть).
func substitute(data []byte, values map[string]string, imageKey string, imageRun func() string) []byte {
	nodes := findTextNodes(data)
	if len(nodes) == 0 {
		return data
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = html.UnescapeString(string(data[n.openEnd:n.closeAt]))
	}

	newText := make(map[int]string)
	for first := 0; first < len(nodes); {
		last := first
		for last+1 < len(nodes) && nodes[last+1].paragraph == nodes[first].paragraph {
			last++
		}
		replaceParagraph(nodes[first:last+1], texts[first:last+1], first, newText, values, imageKey, imageRun)
		first = last + 1
	}

	if len(newText) == 0 {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data) + 256)
	pos := 0
	for i, n := range nodes {
		text, ok := newText[i]
		if !ok {
			continue
		}
		out.Write(data[pos:n.start])
		out.WriteString(preserveSpace(string(data[n.start:n.openEnd])))
		out.WriteString(text)
		out.Write(textClose)
		pos = n.end
	}
	out.Write(data[pos:])
	return out.Bytes()
}

// replaceParagraph обрабатывает узлы одного абзаца. Новое содержимое
// изменённых узлов записывается в newText по глобальному индексу узла.
func replaceParagraph(
	nodes []textNode, texts []string, offset int, newText map[int]string,
	values map[string]string, imageKey string, imageRun func() string,
) {
	var joined strings.Builder
	bounds := make([]int, len(nodes)+1)
	for i, t := range texts {
		bounds[i] = joined.Len()
		joined.WriteString(t)
	}
	bounds[len(nodes)] = joined.Len()
	full := joined.String()

	var repls []replacement
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(full, -1) {
		key := full[m[2]:m[3]]
		switch {
		case imageKey != "" && key == imageKey:
			if imageRun == nil {
				continue
			}
			repls = append(repls, replacement{start: m[0], end: m[1], xml: imageRun()})
		default:
			val, ok := values[key]
			if !ok {
				continue
			}
			repls = append(repls, replacement{start: m[0], end: m[1], xml: escapeText(val)})
		}
	}
	if len(repls) == 0 {
		return
	}

	for i := range nodes {
		ns, ne := bounds[i], bounds[i+1]
		touched := false
		var b strings.Builder
		pos := ns
		for _, r := range repls {
			if r.end <= ns || r.start >= ne {
				continue
			}
			touched = true
			if r.start > pos {
				b.WriteString(xmlEscaper.Replace(full[pos:r.start]))
			}
			if r.start >= ns {
				b.WriteString(r.xml)
			}
			pos = min(r.end, ne)
		}
		if !touched {
			continue
		}
		if pos < ne {
			b.WriteString(xmlEscaper.Replace(full[pos:ne]))
		}
		newText[offset+i] = b.String()
	}
}

// findTextNodes находит все непустые элементы <w:t> и нумерует абзацы.
// Самозакрывающиеся <w:t/> и элементы с похожими именами (<w:tab/>, <w:tbl>) пропускаются.
func findTextNodes(data []byte) []textNode {
	var nodes []textNode
	paragraph := 0
	pos := 0
	for {
		rel := bytes.Index(data[pos:], textOpen)
		if rel < 0 {
			break
		}
		start := pos + rel
		// Граница абзаца между предыдущим узлом и текущим
		if bytes.Contains(data[pos:start], paragraphEnd) {
			paragraph++
		}

		nameEnd := start + len(textOpen)
		if nameEnd >= len(data) {
			break
		}
		switch data[nameEnd] {
		case '>', ' ', '\t', '\n', '\r':
		default:
			pos = nameEnd
			continue
		}

		gt := bytes.IndexByte(data[nameEnd:], '>')
		if gt < 0 {
			break
		}
		openEnd := nameEnd + gt + 1
		if data[openEnd-2] == '/' {
			pos = openEnd
			continue
		}

		closeRel := bytes.Index(data[openEnd:], textClose)
		if closeRel < 0 {
			break
		}
		closeAt := openEnd + closeRel
		end := closeAt + len(textClose)

		nodes = append(nodes, textNode{
			start:     start,
			openEnd:   openEnd,
			closeAt:   closeAt,
			end:       end,
			paragraph: paragraph,
		})
		pos = end
	}
	return nodes
}

// preserveSpace добавляет xml:space="preserve" в открывающий тег <w:t>,
// чтобы Word не обрезал пробелы по краям подставленного текста.
func preserveSpace(openTag string) string {
	if strings.Contains(openTag, "xml:space") {
		return openTag
	}
	return `<w:t xml:space="preserve"` + openTag[len("<w:t"):]
}

// escapeText экранирует значение для <w:t> и переводит строки в <w:br/>.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = xmlEscaper.Replace(l)
	}
	return strings.Join(lines, lineBreak)
}

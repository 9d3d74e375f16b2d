// image.go — встраивание изображения (inline drawing) в document.xml.
package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // декодер размеров JPEG
	_ "image/png"  // декодер размеров PNG
	"os"
	"strings"
)

// emuPerMM — English Metric Units в одном миллиметре.
const emuPerMM = 36000

const (
	relTypeImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	emptyRels    = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
)

// embeddedImage — изображение, подготовленное к встраиванию.
type embeddedImage struct {
	data        []byte
	ext         string // png или jpeg
	contentType string
	relID       string
	mediaName   string // имя части: word/media/...
	cx, cy      int64  // размеры в EMU
	drawings    int    // число вставленных <w:drawing>
}

// loadImage читает изображение и вычисляет размеры в EMU.
func loadImage(img *Image) (*embeddedImage, error) {
	if img.Path == "" {
		return nil, fmt.Errorf("%w: caminho vazio", ErrImage)
	}
	if img.WidthMM <= 0 {
		return nil, fmt.Errorf("%w: largura %.1f mm", ErrImage, img.WidthMM)
	}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImage, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: tamanho zero", ErrImage)
	}

	cx := int64(img.WidthMM * emuPerMM)
	cy := cx * int64(cfg.Height) / int64(cfg.Width)

	return &embeddedImage{
		data:        data,
		ext:         format,
		contentType: "image/" + format,
		cx:          cx,
		cy:          cy,
	}, nil
}

// run возвращает разметку, закрывающую текущий <w:t>/<w:r>, вставляющую
// отдельный run с рисунком и открывающую новый run для остатка текста.
func (e *embeddedImage) run() string {
	e.drawings++
	docPrID := 9000 + e.drawings
	return fmt.Sprintf(`</w:t></w:r><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="Imagem %d"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="imagem.%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline>`+
		`</w:drawing></w:r><w:r><w:t xml:space="preserve">`,
		e.cx, e.cy,
		docPrID, e.drawings,
		docPrID, e.ext,
		e.relationID(),
		e.cx, e.cy,
	)
}

// relationID — идентификатор связи; назначается до вставки разметки,
// так как run() вызывается во время подстановки.
func (e *embeddedImage) relationID() string {
	if e.relID == "" {
		e.relID = "rIdSdImage1"
	}
	return e.relID
}

// attachImage добавляет часть с изображением, связь в document.xml.rels
// и тип содержимого в [Content_Types].xml.
func attachImage(parts []part, img *embeddedImage) ([]part, error) {
	relsIdx, typesIdx := -1, -1
	mediaNames := make(map[string]bool)
	for i, p := range parts {
		switch {
		case p.name == documentRelsPart:
			relsIdx = i
		case p.name == contentTypesPart:
			typesIdx = i
		case strings.HasPrefix(p.name, "word/media/"):
			mediaNames[p.name] = true
		}
	}
	if typesIdx < 0 {
		return nil, fmt.Errorf("%w: отсутствует %s", ErrTemplate, contentTypesPart)
	}

	// Уникальное имя медиа-части
	for n := 1; ; n++ {
		name := fmt.Sprintf("word/media/sd_image%d.%s", n, img.ext)
		if !mediaNames[name] {
			img.mediaName = name
			break
		}
	}

	var rels []byte
	if relsIdx >= 0 {
		rels = parts[relsIdx].data
	} else {
		rels = []byte(emptyRels)
	}
	// relID уже встроен в разметку; коллизия с существующей связью — дефект шаблона
	if bytes.Contains(rels, []byte(`Id="`+img.relationID()+`"`)) {
		return nil, fmt.Errorf("%w: идентификатор связи %s уже занят", ErrTemplate, img.relationID())
	}

	rel := fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"/>`,
		img.relationID(), relTypeImage, strings.TrimPrefix(img.mediaName, "word/"))
	newRels, err := insertBefore(rels, "</Relationships>", rel)
	if err != nil {
		return nil, err
	}

	out := make([]part, len(parts), len(parts)+2)
	copy(out, parts)
	if relsIdx >= 0 {
		out[relsIdx].data = newRels
	} else {
		out = append(out, part{name: documentRelsPart, modified: parts[0].modified, data: newRels})
	}

	types := out[typesIdx].data
	if !bytes.Contains(bytes.ToLower(types), []byte(`extension="`+img.ext+`"`)) {
		def := fmt.Sprintf(`<Default Extension="%s" ContentType="%s"/>`, img.ext, img.contentType)
		if out[typesIdx].data, err = insertBefore(types, "</Types>", def); err != nil {
			return nil, err
		}
	}

	out = append(out, part{name: img.mediaName, modified: parts[0].modified, data: img.data})
	return out, nil
}

// insertBefore вставляет fragment перед последним вхождением closing.
func insertBefore(data []byte, closing, fragment string) ([]byte, error) {
	idx := bytes.LastIndex(data, []byte(closing))
	if idx < 0 {
		return nil, fmt.Errorf("%w: не найден %s", ErrTemplate, closing)
	}
	out := make([]byte, 0, len(data)+len(fragment))
	out = append(out, data[:idx]...)
	out = append(out, fragment...)
	out = append(out, data[idx:]...)
	return out, nil
}

package pdftool

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Info — метаданные PDF, читаются без подпроцесса.
type Info struct {
	Pages     int               `json:"num_pages"`
	Encrypted bool              `json:"is_encrypted"`
	Metadata  map[string]string `json:"metadata"`
}

func GetInfo(path string) (*Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		// зашифрованный документ не открывается без пароля
		return &Info{Encrypted: true, Metadata: map[string]string{}}, nil
	}

	info := &Info{
		Pages:    reader.NumPage(),
		Metadata: map[string]string{},
	}

	trailer := reader.Trailer()
	if !trailer.IsNull() {
		meta := trailer.Key("Info")
		if !meta.IsNull() {
			for _, key := range []string{"Title", "Author", "Subject", "Creator"} {
				if v := meta.Key(key); v.Kind() == pdf.String {
					info.Metadata[key] = v.RawString()
				}
			}
		}
	}

	return info, nil
}

// PageCount нужен для delete_pages: complement считается от общего числа.
func PageCount(path string) (int, error) {
	info, err := GetInfo(path)
	if err != nil {
		return 0, err
	}
	if info.Encrypted && info.Pages == 0 {
		return 0, fmt.Errorf("document is encrypted")
	}
	return info.Pages, nil
}

// Package banner prints the startup banner of the serve command.
package banner

import (
	"fmt"
	"io"
	"strings"
)

const art = `
 ___                     _____               _    
|_ _|_ ____   _____ _ _ |_   _| __ __ _  ___| | __
 | || '_ \ \ / / _ \ '_ \ | || '__/ _' |/ __| |/ /
 | || | | \ V /  __/ | | || || | | (_| | (__|   < 
|___|_| |_|\_/ \___|_| |_||_||_|  \__,_|\___|_|\_\
`

// Info is what the banner reports below the art.
type Info struct {
	Version  string
	Addr     string
	Provider string
	Model    string
	Database string
}

// Print writes the banner to w. Blank fields are left out.
func Print(w io.Writer, info Info) {
	for _, line := range strings.Split(strings.Trim(art, "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(w, "  inventory assistant  v%s\n", orDefault(info.Version, "dev"))
	for _, kv := range [][2]string{
		{"listening", info.Addr},
		{"model", modelLabel(info.Provider, info.Model)},
		{"database", info.Database},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "  %-10s %s\n", kv[0], kv[1])
		}
	}
	fmt.Fprintln(w)
}

func modelLabel(provider, model string) string {
	switch {
	case provider == "":
		return model
	case model == "":
		return provider
	}
	return provider + "/" + model
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

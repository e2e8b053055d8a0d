// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"golang.org/x/text/language"

	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
)

// Supported response languages.
const (
	Portuguese = "pt"
	English    = "en"
)

// Marker words are compared against the accent-folded question.
var (
	portugueseMarkers = wordSet(
		"qual", "quais", "quanto", "quantos", "quantas", "onde", "como", "existe", "existem",
		"tem", "ha", "mostre", "mostrar", "liste", "listar", "do", "da", "dos", "das", "no", "na",
		"nos", "nas", "um", "uma", "os", "sao", "e", "esta", "estao", "projeto", "desenho",
		"escala", "andar", "andares", "pavimento", "porta", "portas", "parede", "paredes",
		"janela", "janelas", "escada", "escadas", "sala", "salas", "trata", "sobre", "informacoes",
	)
	englishMarkers = wordSet(
		"what", "which", "how", "many", "much", "where", "is", "are", "there", "show", "list",
		"the", "of", "in", "on", "this", "does", "do", "and", "with", "project", "drawing",
		"scale", "floor", "floors", "door", "doors", "wall", "walls", "window", "windows",
		"stair", "stairs", "room", "rooms", "about", "information", "count",
	)
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// DetectLanguage picks the response language for a question.
//
// Description:
//
//	A supported hint wins. Otherwise the question's words are counted
//	against the Portuguese and English marker sets and the larger overlap
//	wins. A tie (including no overlap at all) returns fallback.
//
// Inputs:
//
//	text - The raw question.
//	hint - Optional BCP 47 tag such as "pt-BR" or "en".
//	fallback - Used on a tie.
//
// Outputs:
//
//	string - "pt" or "en".
func DetectLanguage(text, hint, fallback string) string {
	if lang, ok := supported(hint); ok {
		return lang
	}

	var pt, en int
	for _, w := range textnorm.Words(textnorm.Normalize(text)) {
		if portugueseMarkers[w] {
			pt++
		}
		if englishMarkers[w] {
			en++
		}
	}
	switch {
	case pt > en:
		return Portuguese
	case en > pt:
		return English
	}
	if lang, ok := supported(fallback); ok {
		return lang
	}
	return Portuguese
}

// supported maps a language tag to one of the supported base languages.
func supported(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	base, _ := t.Base()
	switch base.String() {
	case Portuguese:
		return Portuguese, true
	case English:
		return English, true
	}
	return "", false
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"

	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
)

var suggestedQuestions = []QuestionCategory{
	{
		Category: "Informações do Projeto",
		Questions: []string{
			"Qual o nome do projeto?",
			"Qual é o código do projeto?",
			"Que tipo de projeto é este?",
			"Onde está localizado o projeto?",
		},
	},
	{
		Category: "Escala e Medidas",
		Questions: []string{
			"Qual a escala do projeto?",
			"Qual o tamanho do desenho?",
			"Quais são as dimensões principais?",
			"Em que unidade estão as medidas?",
		},
	},
	{
		Category: "Elementos Arquitetônicos",
		Questions: []string{
			"Quantas salas tem o projeto?",
			"Onde estão as paredes?",
			"Tem escadas no projeto?",
			"Quais são os espaços principais?",
		},
	},
	{
		Category: "Análise de Dados",
		Questions: []string{
			"Que tipos de elementos tem no desenho?",
			"Quais são as anotações principais?",
			"Em quantos layers está organizado?",
			"Que informações técnicas posso encontrar?",
		},
	},
}

var suggestionTips = []string{
	"Você pode perguntar em português ou inglês",
	"Não precisa usar termos técnicos, eu entendo linguagem natural",
	"Posso buscar informações em diferentes locais (anotações, metadados, nomes)",
	"Se não encontrar algo, tento abordagens alternativas",
}

var basicQuestions = []QuestionCategory{
	{
		Category: "Basics",
		Questions: []string{
			"What annotations are in the drawing?",
			"Show me all wall segments",
			"How many spaces are there?",
			"What is the project scale?",
		},
	},
}

// SuggestQuestions returns example questions tailored to the loaded drawing.
//
// Description:
//
//	When the store answers, the response carries node counts per label and
//	the full categorized question list. When it does not, a short English
//	list is returned together with the reason. It never fails.
func SuggestQuestions(ctx context.Context, s store.GraphStore) SuggestionsResponse {
	counts, err := store.LabelCounts(ctx, s)
	if err != nil {
		return SuggestionsResponse{
			SuggestedQuestions: basicQuestions,
			Error:              "could not generate advanced suggestions: " + err.Error(),
		}
	}
	return SuggestionsResponse{
		DataSummary:        counts,
		SuggestedQuestions: suggestedQuestions,
		Tips:               suggestionTips,
	}
}

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
	"fmt"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// messages is the phrase catalog of one language.
type messages struct {
	intents      map[resolution.Intent]string
	interpreted  string
	terms        string
	found        string
	alsoChecked  string
	alsoReturned string
	nothingFound string
	systemError  string
	noStrategies string
	attempted    string
	more         string
	degraded     string
	status       map[resolution.Status]string
	rows         string
}

func (m messages) outcome(c *resolution.Candidate) string {
	if c.HasRows() {
		return fmt.Sprintf(m.rows, len(c.Rows))
	}
	if s, ok := m.status[c.Status]; ok {
		return s
	}
	return string(c.Status)
}

var catalogs = map[string]messages{
	Portuguese: {
		intents: map[resolution.Intent]string{
			resolution.IntentProjectInfo:        "informações do projeto",
			resolution.IntentScaleInfo:          "escala do desenho",
			resolution.IntentCountQuery:         "contagem de elementos",
			resolution.IntentElementSearch:      "busca de elementos",
			resolution.IntentGeneralExploration: "exploração geral",
		},
		interpreted:  "Interpretei sua pergunta como: %s.",
		terms:        "Termos reconhecidos: %s.",
		found:        "Encontrei %d resultado(s) relevante(s) com a estratégia %q.",
		alsoChecked:  "Também verifiquei %d abordagem(s) alternativa(s).",
		alsoReturned: "%d delas também retornaram dados.",
		nothingFound: "Não encontrei nenhuma informação sobre isso nos dados do desenho.",
		systemError:  "Erro do sistema: nenhuma consulta pôde ser executada nos dados do desenho.",
		noStrategies: "Erro do sistema: nenhuma estratégia de consulta foi gerada.",
		attempted:    "Estratégias tentadas: %s.",
		more:         "e mais %d",
		degraded:     "A tradução automática não estava disponível ou foi rejeitada; usei apenas as consultas pré-definidas.",
		status: map[resolution.Status]string{
			resolution.StatusExecuted:  "sem resultados",
			resolution.StatusFailed:    "falhou",
			resolution.StatusTimedOut:  "tempo esgotado",
			resolution.StatusSkipped:   "não executada",
			resolution.StatusInvalid:   "inválida",
			resolution.StatusPending:   "pendente",
			resolution.StatusValidated: "não executada",
		},
		rows: "%d resultado(s)",
	},
	English: {
		intents: map[resolution.Intent]string{
			resolution.IntentProjectInfo:        "project information",
			resolution.IntentScaleInfo:          "drawing scale",
			resolution.IntentCountQuery:         "element count",
			resolution.IntentElementSearch:      "element search",
			resolution.IntentGeneralExploration: "general exploration",
		},
		interpreted:  "I interpreted your question as: %s.",
		terms:        "Recognized terms: %s.",
		found:        "Found %d relevant result(s) using the %q strategy.",
		alsoChecked:  "I also checked %d alternative approach(es).",
		alsoReturned: "%d of them also returned data.",
		nothingFound: "No information about this was found in the drawing data.",
		systemError:  "System error: no query could be run against the drawing data.",
		noStrategies: "System error: no query strategy was generated.",
		attempted:    "Strategies attempted: %s.",
		more:         "and %d more",
		degraded:     "The automatic translation was unavailable or rejected, so only predefined queries were used.",
		status: map[resolution.Status]string{
			resolution.StatusExecuted:  "no results",
			resolution.StatusFailed:    "failed",
			resolution.StatusTimedOut:  "timed out",
			resolution.StatusSkipped:   "not run",
			resolution.StatusInvalid:   "invalid",
			resolution.StatusPending:   "pending",
			resolution.StatusValidated: "not run",
		},
		rows: "%d result(s)",
	},
}

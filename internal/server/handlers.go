package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/evidence"
	"github.com/sells-group/entity-xref/internal/model"
)

// entityResponse is one entity with its member records inlined.
type entityResponse struct {
	model.CanonicalEntity
	Records []model.Record        `json:"records"`
	Links   []model.CandidateLink `json:"candidate_links"`
}

// scoreResponse is a dry-run re-score of one cross-reference.
type scoreResponse struct {
	XrefID   string            `json:"xref_id"`
	Stored   *model.Confidence `json:"stored,omitempty"`
	Computed model.Confidence  `json:"computed"`
	Changed  bool              `json:"changed"`
}

func (s *Server) canonical() (model.CanonicalMap, error) {
	var cm model.CanonicalMap
	_, err := s.artifacts.Read(artifact.CanonicalFile, &cm)
	return cm, err
}

func (s *Server) xrefs() ([]model.CrossReference, error) {
	var xrefs []model.CrossReference
	_, err := s.artifacts.Read(artifact.XrefsFile, &xrefs)
	return xrefs, err
}

func (s *Server) chains() ([]model.EvidenceChain, error) {
	var chains []model.EvidenceChain
	_, err := s.artifacts.Read(artifact.ChainsFile, &chains)
	return chains, err
}

// handleEntities lists canonical entities. Filters: ?dataset=, ?flagged=true
// and ?q= (case-insensitive substring of the canonical name).
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	cm, err := s.canonical()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return
	}
	q := r.URL.Query()
	ds := q.Get("dataset")
	flagged := q.Get("flagged") == "true"
	name := strings.ToLower(q.Get("q"))

	var out []model.CanonicalEntity
	for _, e := range cm.Entities {
		if flagged && !e.Flagged {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(e.CanonicalName), name) {
			continue
		}
		if ds != "" && !hasDataset(e, ds) {
			continue
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, list(r, out))
}

func hasDataset(e model.CanonicalEntity, ds string) bool {
	for _, m := range e.Members {
		if m.DatasetID == ds {
			return true
		}
	}
	return false
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	cm, err := s.canonical()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	e, ok := cm.EntityIndex()[id]
	if !ok {
		writeError(w, http.StatusNotFound, "entity "+id+" not found")
		return
	}
	records := cm.RecordIndex()
	resp := entityResponse{CanonicalEntity: e, Records: []model.Record{}, Links: []model.CandidateLink{}}
	for _, m := range e.Members {
		if rec, ok := records[m.RecordID]; ok {
			resp.Records = append(resp.Records, rec)
		}
	}
	for _, l := range cm.CandidateLinks {
		if l.FromEntity == id || l.ToEntity == id {
			resp.Links = append(resp.Links, l)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleXrefs lists cross-references, optionally filtered by ?tier=.
func (s *Server) handleXrefs(w http.ResponseWriter, r *http.Request) {
	xrefs, err := s.xrefs()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return
	}
	tier := r.URL.Query().Get("tier")
	var out []model.CrossReference
	for _, x := range xrefs {
		if tier != "" && (x.Confidence == nil || !strings.EqualFold(string(x.Confidence.Tier), tier)) {
			continue
		}
		out = append(out, x)
	}
	writeJSON(w, http.StatusOK, list(r, out))
}

func (s *Server) findXref(w http.ResponseWriter, r *http.Request) (model.CrossReference, bool) {
	xrefs, err := s.xrefs()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return model.CrossReference{}, false
	}
	id := chi.URLParam(r, "id")
	for _, x := range xrefs {
		if x.ID == id {
			return x, true
		}
	}
	writeError(w, http.StatusNotFound, "cross-reference "+id+" not found")
	return model.CrossReference{}, false
}

func (s *Server) handleXref(w http.ResponseWriter, r *http.Request) {
	if x, ok := s.findXref(w, r); ok {
		writeJSON(w, http.StatusOK, x)
	}
}

// handleXrefScore re-scores one cross-reference without persisting anything.
func (s *Server) handleXrefScore(w http.ResponseWriter, r *http.Request) {
	x, ok := s.findXref(w, r)
	if !ok {
		return
	}
	next := s.scorer.Xref(x)
	writeJSON(w, http.StatusOK, scoreResponse{
		XrefID:   x.ID,
		Stored:   x.Confidence,
		Computed: next,
		Changed:  x.Confidence == nil || *x.Confidence != next,
	})
}

// handleChains lists chains, optionally filtered by ?status= and ?xref=.
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains, err := s.chains()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	xrefID := r.URL.Query().Get("xref")
	var out []model.EvidenceChain
	for _, c := range chains {
		if status != "" && string(c.CorroborationStatus) != status {
			continue
		}
		if xrefID != "" && c.XrefID != xrefID {
			continue
		}
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, list(r, out))
}

func (s *Server) findChain(w http.ResponseWriter, r *http.Request) (model.EvidenceChain, bool) {
	chains, err := s.chains()
	if err != nil {
		s.writeArtifactError(w, r, err)
		return model.EvidenceChain{}, false
	}
	id := chi.URLParam(r, "id")
	for _, c := range chains {
		if c.ID == id {
			return c, true
		}
	}
	writeError(w, http.StatusNotFound, "chain "+id+" not found")
	return model.EvidenceChain{}, false
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.findChain(w, r); ok {
		writeJSON(w, http.StatusOK, c)
	}
}

// handleChainValidate re-reads the raw datasets behind one chain.
func (s *Server) handleChainValidate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.findChain(w, r)
	if !ok {
		return
	}
	src := dataset.NewSource(r.Context(), s.manifest, s.loader)
	writeJSON(w, http.StatusOK, evidence.Validate(c, src))
}

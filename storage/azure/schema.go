package azure

type field struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Key                 bool   `json:"key,omitempty"`
	Searchable          bool   `json:"searchable"`
	Filterable          bool   `json:"filterable"`
	Sortable            bool   `json:"sortable"`
	Facetable           bool   `json:"facetable"`
	Retrievable         bool   `json:"retrievable"`
	Analyzer            string `json:"analyzer,omitempty"`
	Dimensions          int    `json:"dimensions,omitempty"`
	VectorSearchProfile string `json:"vectorSearchProfile,omitempty"`
}

type hnswParameters struct {
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
	EfSearch       int    `json:"efSearch"`
	Metric         string `json:"metric"`
}

type vectorAlgorithm struct {
	Name           string         `json:"name"`
	Kind           string         `json:"kind"`
	HNSWParameters hnswParameters `json:"hnswParameters"`
}

type vectorProfile struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

type vectorSearch struct {
	Algorithms []vectorAlgorithm `json:"algorithms"`
	Profiles   []vectorProfile   `json:"profiles"`
}

type indexSchema struct {
	Name         string       `json:"name"`
	Fields       []field      `json:"fields"`
	VectorSearch vectorSearch `json:"vectorSearch"`
}

// schema describes the chunk document layout. Field names match the
// JSON tags of core.UploadDocument.
func (x *Index) schema() indexSchema {
	return indexSchema{
		Name: x.name,
		Fields: []field{
			{Name: "id", Type: "Edm.String", Key: true, Filterable: true, Retrievable: true},
			{Name: "case_id", Type: "Edm.String", Filterable: true, Retrievable: true},
			{Name: "case_name", Type: "Edm.String", Searchable: true, Retrievable: true},
			{Name: "citation", Type: "Edm.String", Searchable: true, Filterable: true, Retrievable: true},
			{Name: "court", Type: "Edm.String", Filterable: true, Facetable: true, Retrievable: true},
			{Name: "date_filed", Type: "Edm.DateTimeOffset", Filterable: true, Sortable: true, Retrievable: true},
			{Name: "jurisdiction", Type: "Edm.String", Filterable: true, Facetable: true, Retrievable: true},
			{Name: "content", Type: "Edm.String", Searchable: true, Retrievable: true, Analyzer: "en.lucene"},
			{
				Name:                "content_vector",
				Type:                "Collection(Edm.Single)",
				Searchable:          true,
				Retrievable:         true,
				Dimensions:          x.dimensions,
				VectorSearchProfile: vectorProfileName,
			},
			{Name: "url", Type: "Edm.String", Retrievable: true},
			{Name: "chunk_index", Type: "Edm.Int32", Filterable: true, Sortable: true, Retrievable: true},
			{Name: "total_chunks", Type: "Edm.Int32", Filterable: true, Retrievable: true},
		},
		VectorSearch: vectorSearch{
			Algorithms: []vectorAlgorithm{{
				Name: vectorAlgorithmName,
				Kind: "hnsw",
				HNSWParameters: hnswParameters{
					M:              4,
					EfConstruction: 400,
					EfSearch:       500,
					Metric:         "cosine",
				},
			}},
			Profiles: []vectorProfile{{Name: vectorProfileName, Algorithm: vectorAlgorithmName}},
		},
	}
}

package store

// DefaultVenues is the initial list of support locations in Aracaju.
func DefaultVenues() []VenueInput {
	return []VenueInput{
		{
			Name:        "CRAM Maria Otávia Gonçalves de Miranda",
			Address:     "Rua Campo do Brito, 109 - 13 de Julho, Aracaju - SE, Brasil",
			Logo:        "https://placehold.co/100x100/purple/white?text=CRAM",
			Responsible: "Maria Otávia",
			Latitude:    -10.9162,
			Longitude:   -37.0577,
		},
		{
			Name:        "Secretaria da Mulher Aracaju",
			Address:     "Rua Campo do Brito, 109 - 13 de Julho, Aracaju - SE, Brasil",
			Logo:        "https://placehold.co/100x100/blue/white?text=SMA",
			Responsible: "Elaine Oliveira",
			Latitude:    -10.9162,
			Longitude:   -37.0577,
		},
		{
			Name:        "Delegacia Especial de Atendimento à Mulher (DEAM)",
			Address:     "Rua C, 120 - Santos Dumont, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/black/white?text=DEAM",
			Responsible: "Delegada Ana Paula",
			Latitude:    -10.9254,
			Longitude:   -37.0521,
		},
		{
			Name:        "Defensoria Pública do Estado de Sergipe",
			Address:     "Travessa João Francisco da Silveira, 44 - Centro, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/green/white?text=DPE",
			Responsible: "Dr. João Silva",
			Latitude:    -10.9091,
			Longitude:   -37.0677,
		},
		{
			Name:        "Ministério Público de Sergipe",
			Address:     "Av. Conselheiro Carlos Alberto Sampaio, 505 - Capucho, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/red/white?text=MPSE",
			Responsible: "Dra. Carla Souza",
			Latitude:    -10.9145,
			Longitude:   -37.0443,
		},
		{
			Name:        "Tribunal de Justiça de Sergipe - Juizado da Violência Doméstica",
			Address:     "Rua Pacatuba, 55 - Centro, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/orange/white?text=TJSE",
			Responsible: "Juíza Maria da Glória",
			Latitude:    -10.9105,
			Longitude:   -37.0652,
		},
		{
			Name:        "Casa da Mulher Brasileira",
			Address:     "Av. Maranhão, s/n - Santos Dumont, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/pink/white?text=CMB",
			Responsible: "Fernanda Lima",
			Latitude:    -10.9234,
			Longitude:   -37.0498,
		},
		{
			Name:        "ONG Mulheres de Peito",
			Address:     "Rua Lagarto, 100 - Centro, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/yellow/black?text=ONG",
			Responsible: "Roberta Santos",
			Latitude:    -10.9115,
			Longitude:   -37.0625,
		},
		{
			Name:        "Coordenadoria Estadual de Políticas para as Mulheres",
			Address:     "Rua Vila Cristina, 1051 - 13 de Julho, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/cyan/black?text=CEPM",
			Responsible: "Juliana Costa",
			Latitude:    -10.9178,
			Longitude:   -37.0542,
		},
		{
			Name:        "Patrulha Maria da Penha - Guarda Municipal",
			Address:     "Parque da Sementeira - Jardins, Aracaju - SE",
			Logo:        "https://placehold.co/100x100/gray/white?text=PMP",
			Responsible: "Comandante Silva",
			Latitude:    -10.9389,
			Longitude:   -37.0452,
		},
	}
}

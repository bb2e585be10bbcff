package catalog

// Defaults is the starter catalog offered to new projects.
func Defaults() []Material {
	return []Material{
		{Name: "Cemento Portland Tipo I", Units: []string{"Saco 42.5kg"}},
		{Name: "Varilla de Acero Grado 60", Units: []string{`Unidad 1/2"`, `Unidad 3/8"`, `Unidad 5/8"`}},
		{Name: "Arena Fina de Río", Units: []string{"Metro Cúbico (m³)", "Saco"}},
		{Name: "Bloque de Concreto", Units: []string{"Unidad (15x20x40cm)"}},
		{Name: "Pintura Acrílica (Galón)", Units: []string{"Galón", "Bote 5G"}},
	}
}

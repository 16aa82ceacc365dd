package metadata

import "testing"

func TestResolveClosure_PullsInDependencies(t *testing.T) {
	closure, err := ResolveClosure([]string{"analytics"})
	if err != nil {
		t.Fatalf("resolve closure: %v", err)
	}

	order := make(map[string]int, len(closure))
	for i, f := range closure {
		order[f.Name] = i
	}

	for _, dep := range []string{"indicators", "data_elements", "programs", "legends"} {
		if _, ok := order[dep]; !ok {
			t.Fatalf("expected %s to be pulled in by analytics, closure=%v", dep, closure)
		}
		if order[dep] >= order["analytics"] {
			t.Fatalf("expected %s to precede analytics, got order %v", dep, order)
		}
	}
}

func TestResolveClosure_UnknownFamily(t *testing.T) {
	_, err := ResolveClosure([]string{"not-a-family"})
	if err == nil {
		t.Fatal("expected error for unknown family")
	}
}

func TestResolveClosure_PriorityOrderPreserved(t *testing.T) {
	closure, err := ResolveClosure([]string{"users", "organisation", "categories"})
	if err != nil {
		t.Fatalf("resolve closure: %v", err)
	}
	var names []string
	for _, f := range closure {
		names = append(names, f.Name)
	}
	want := []string{"users", "organisation", "categories"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestDescriptorFor_CoversEveryFamilyMember(t *testing.T) {
	for _, f := range Families {
		for _, resource := range f.Members {
			if _, ok := DescriptorFor(resource); !ok {
				t.Fatalf("missing descriptor for %s (family %s)", resource, f.Name)
			}
		}
	}
}

package apitest

import (
	"fmt"

	"github.com/MrEthical07/goBlog/api"
)

// DemoPassword is the password of the seeded demo viewer.
const DemoPassword = "correct-horse"

// SeedDemo fills s with a small catalogue and one viewer,
// demo@example.com, for local runs.
func SeedDemo(s *Server) (api.Viewer, error) {
	viewer, err := s.RegisterViewer("demo@example.com", "demo", DemoPassword)
	if err != nil {
		return api.Viewer{}, fmt.Errorf("seed viewer: %w", err)
	}

	tech := s.AddCategory("Technology", "")
	golang := s.AddCategory("Go", tech.ID)
	web := s.AddCategory("Web", tech.ID)
	travel := s.AddCategory("Travel", "")
	asia := s.AddCategory("Asia", travel.ID)

	posts := []api.Blog{
		{Title: "Goroutines in practice", Summary: "Structured concurrency without tears.", Content: "<p>Start every goroutine with a plan to stop it.</p>", ReadTime: "6", Category: tech.ID, SubCategory: golang.ID},
		{Title: "Context all the way down", Summary: "Deadlines and cancellation.", Content: "<p>Pass <code>context.Context</code> first.</p>", ReadTime: "4", Category: tech.ID, SubCategory: golang.ID},
		{Title: "Server-rendered forms", Summary: "Progressive enhancement today.", Content: "<p>Forms still work.<script>alert(1)</script></p>", ReadTime: "8", Category: tech.ID, SubCategory: web.ID},
		{Title: "Night trains of Japan", Summary: "Sleeping across Honshu.", Content: "<p>The Sunrise Izumo leaves Tokyo at ten.</p>", ReadTime: "12", Category: travel.ID, SubCategory: asia.ID},
	}
	for _, p := range posts {
		s.AddBlog(p)
	}
	return viewer, nil
}

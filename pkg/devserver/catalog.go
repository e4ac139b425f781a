package devserver

import (
	"strings"
)

const languageVN = "VN"

type dish struct {
	Name          string
	NameEN        string
	Region        string
	DescriptionVN string
	DescriptionEN string
	IngredientsVN []string
	IngredientsEN []string
	Related       []string
}

type foodInfo struct {
	Name        string   `json:"name"`
	Region      string   `json:"region"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Related     []string `json:"related"`
}

type foodEntry struct {
	ID string `json:"id"`
	foodInfo
}

type pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// catalog is an ordered list of dishes; prediction indices refer to this order.
type catalog struct {
	dishes []dish
	byName map[string]int
}

func newCatalog(dishes []dish) *catalog {
	c := &catalog{dishes: dishes, byName: make(map[string]int, len(dishes))}
	for i, d := range dishes {
		c.byName[d.Name] = i
	}
	return c
}

func (c *catalog) len() int { return len(c.dishes) }

func (c *catalog) info(name, lang string) (foodInfo, bool) {
	i, ok := c.byName[name]
	if !ok {
		return foodInfo{}, false
	}
	return c.dishes[i].localized(lang), true
}

func (d dish) localized(lang string) foodInfo {
	if lang == "" || strings.EqualFold(lang, languageVN) {
		return foodInfo{
			Name:        d.Name,
			Region:      d.Region,
			Description: d.DescriptionVN,
			Ingredients: d.IngredientsVN,
			Related:     d.Related,
		}
	}
	return foodInfo{
		Name:        d.NameEN,
		Region:      d.Region,
		Description: d.DescriptionEN,
		Ingredients: d.IngredientsEN,
		Related:     d.Related,
	}
}

// search filters by region ("all" or empty matches every region) and by a
// case-insensitive substring of the dish name or localized description.
// page is clamped into range.
func (c *catalog) search(query, region, lang string, page, perPage int) ([]foodEntry, pagination) {
	query = strings.ToLower(strings.TrimSpace(query))
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	matched := []foodEntry{}
	for _, d := range c.dishes {
		info := d.localized(lang)
		if region != "" && region != "all" && info.Region != region {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Name), query) &&
			!strings.Contains(strings.ToLower(info.Description), query) {
			continue
		}
		matched = append(matched, foodEntry{ID: d.Name, foodInfo: info})
	}

	total := len(matched)
	totalPages := max(1, (total+perPage-1)/perPage)
	page = max(1, min(page, totalPages))
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return matched[start:end], pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

var builtinDishes = []dish{
	{
		Name:          "Phở",
		NameEN:        "Pho",
		Region:        "Bắc",
		DescriptionVN: "Món nước với bánh phở, nước dùng hầm xương bò và thảo mộc.",
		DescriptionEN: "Rice noodle soup with a slow simmered beef bone broth and herbs.",
		IngredientsVN: []string{"bánh phở", "thịt bò", "hành", "quế", "hồi"},
		IngredientsEN: []string{"rice noodles", "beef", "onion", "cinnamon", "star anise"},
		Related:       []string{"Bún bò Huế", "Bún chả"},
	},
	{
		Name:          "Bún chả",
		NameEN:        "Bun cha",
		Region:        "Bắc",
		DescriptionVN: "Thịt lợn nướng ăn kèm bún và nước mắm chua ngọt.",
		DescriptionEN: "Grilled pork served with rice vermicelli and a sweet and sour fish sauce.",
		IngredientsVN: []string{"bún", "thịt lợn", "nước mắm", "rau sống"},
		IngredientsEN: []string{"rice vermicelli", "pork", "fish sauce", "fresh herbs"},
		Related:       []string{"Phở", "Nem rán"},
	},
	{
		Name:          "Nem rán",
		NameEN:        "Fried spring rolls",
		Region:        "Bắc",
		DescriptionVN: "Cuốn bánh đa nem nhân thịt, miến và mộc nhĩ, rán giòn.",
		DescriptionEN: "Rice paper rolls filled with pork, glass noodles and wood ear mushroom, fried until crisp.",
		IngredientsVN: []string{"bánh đa nem", "thịt lợn", "miến", "mộc nhĩ"},
		IngredientsEN: []string{"rice paper", "pork", "glass noodles", "wood ear mushroom"},
		Related:       []string{"Bún chả", "Gỏi cuốn"},
	},
	{
		Name:          "Bún bò Huế",
		NameEN:        "Hue beef noodle soup",
		Region:        "Trung",
		DescriptionVN: "Bún sợi to trong nước dùng cay thơm mùi sả và mắm ruốc.",
		DescriptionEN: "Thick rice noodles in a spicy broth flavoured with lemongrass and shrimp paste.",
		IngredientsVN: []string{"bún", "bắp bò", "giò heo", "sả", "mắm ruốc"},
		IngredientsEN: []string{"rice noodles", "beef shank", "pork knuckle", "lemongrass", "shrimp paste"},
		Related:       []string{"Phở", "Mì Quảng"},
	},
	{
		Name:          "Mì Quảng",
		NameEN:        "Quang noodles",
		Region:        "Trung",
		DescriptionVN: "Mì sợi dẹt màu vàng với ít nước dùng, tôm, thịt và bánh tráng.",
		DescriptionEN: "Flat yellow noodles with a little broth, shrimp, pork and rice crackers.",
		IngredientsVN: []string{"mì quảng", "tôm", "thịt lợn", "đậu phộng", "bánh tráng"},
		IngredientsEN: []string{"turmeric noodles", "shrimp", "pork", "peanuts", "rice crackers"},
		Related:       []string{"Bún bò Huế", "Cao lầu"},
	},
	{
		Name:          "Cao lầu",
		NameEN:        "Cao lau",
		Region:        "Trung",
		DescriptionVN: "Đặc sản Hội An với sợi mì dai, thịt xá xíu và rau sống.",
		DescriptionEN: "Hoi An speciality of chewy noodles, char siu pork and fresh greens.",
		IngredientsVN: []string{"sợi cao lầu", "thịt xá xíu", "rau sống", "tóp mỡ"},
		IngredientsEN: []string{"cao lau noodles", "char siu pork", "fresh greens", "pork cracklings"},
		Related:       []string{"Mì Quảng"},
	},
	{
		Name:          "Bánh mì",
		NameEN:        "Banh mi",
		Region:        "Nam",
		DescriptionVN: "Bánh mì giòn kẹp pa tê, thịt nguội, đồ chua và rau mùi.",
		DescriptionEN: "Crusty baguette filled with pate, cold cuts, pickled vegetables and coriander.",
		IngredientsVN: []string{"bánh mì", "pa tê", "thịt nguội", "đồ chua", "rau mùi"},
		IngredientsEN: []string{"baguette", "pate", "cold cuts", "pickles", "coriander"},
		Related:       []string{"Cơm tấm"},
	},
	{
		Name:          "Cơm tấm",
		NameEN:        "Broken rice",
		Region:        "Nam",
		DescriptionVN: "Cơm gạo tấm với sườn nướng, bì, chả trứng và nước mắm.",
		DescriptionEN: "Broken rice with grilled pork chop, shredded pork skin, egg meatloaf and fish sauce.",
		IngredientsVN: []string{"gạo tấm", "sườn nướng", "bì", "chả trứng", "nước mắm"},
		IngredientsEN: []string{"broken rice", "grilled pork chop", "pork skin", "egg meatloaf", "fish sauce"},
		Related:       []string{"Bánh mì", "Hủ tiếu"},
	},
	{
		Name:          "Hủ tiếu",
		NameEN:        "Hu tieu",
		Region:        "Nam",
		DescriptionVN: "Món nước với sợi hủ tiếu dai, nước dùng ngọt từ xương và tôm.",
		DescriptionEN: "Chewy rice noodles in a sweet pork bone and shrimp broth.",
		IngredientsVN: []string{"hủ tiếu", "thịt lợn", "tôm", "gan", "hẹ"},
		IngredientsEN: []string{"rice noodles", "pork", "shrimp", "liver", "chives"},
		Related:       []string{"Cơm tấm", "Gỏi cuốn"},
	},
	{
		Name:          "Gỏi cuốn",
		NameEN:        "Fresh spring rolls",
		Region:        "Nam",
		DescriptionVN: "Bánh tráng cuốn tôm, thịt, bún và rau sống, chấm tương đậu.",
		DescriptionEN: "Rice paper rolls with shrimp, pork, vermicelli and herbs, served with peanut hoisin sauce.",
		IngredientsVN: []string{"bánh tráng", "tôm", "thịt lợn", "bún", "rau sống"},
		IngredientsEN: []string{"rice paper", "shrimp", "pork", "rice vermicelli", "fresh herbs"},
		Related:       []string{"Nem rán", "Hủ tiếu"},
	},
}

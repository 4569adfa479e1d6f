package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/store"
)

type activityForm int

const (
	formNone activityForm = iota
	formNewCategory
	formEditCategory
	formDeleteCategory
	formNewActivity
	formEditActivity
)

// activitiesModel lists categories and, after enter, the activities filed
// under the selected one.
type activitiesModel struct {
	store  *store.Store
	width  int
	height int

	categories     []store.Category
	activities     []store.Activity
	cursor         int
	activityCursor int
	inCategory     bool

	formActive bool
	form       *huh.Form
	formType   activityForm

	// Form field pointers (survive value copies)
	formName     *string
	formDesc     *string
	formExternal *string
	formConfirm  *bool

	editingID string
}

func newActivitiesModel(s *store.Store) activitiesModel {
	name, desc, ext, confirm := "", "", "", false
	return activitiesModel{
		store:        s,
		formName:     &name,
		formDesc:     &desc,
		formExternal: &ext,
		formConfirm:  &confirm,
	}
}

func (p *activitiesModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type categoriesDataMsg struct {
	categories []store.Category
}

type activitiesDataMsg struct {
	activities []store.Activity
}

func (p activitiesModel) refresh() tea.Cmd {
	return func() tea.Msg {
		categories, err := p.store.ListCategories()
		if err != nil {
			return errorStatus("Load categories: %v", err)
		}
		return categoriesDataMsg{categories: categories}
	}
}

func (p activitiesModel) selected() (store.Category, bool) {
	if p.cursor >= len(p.categories) {
		return store.Category{}, false
	}
	return p.categories[p.cursor], true
}

func (p activitiesModel) refreshActivities() tea.Cmd {
	c, ok := p.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		activities, err := p.store.GetActivitiesByCategory(c.Name)
		if err != nil {
			return errorStatus("Load activities: %v", err)
		}
		return activitiesDataMsg{activities: activities}
	}
}

func (p activitiesModel) update(msg tea.Msg) (activitiesModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case categoriesDataMsg:
		p.categories = msg.categories
		if p.cursor >= len(p.categories) {
			p.cursor = max(0, len(p.categories)-1)
		}
		if p.inCategory {
			return p, p.refreshActivities()
		}
		return p, nil

	case activitiesDataMsg:
		p.activities = msg.activities
		if p.activityCursor >= len(p.activities) {
			p.activityCursor = max(0, len(p.activities)-1)
		}
		return p, nil

	case tea.KeyMsg:
		if p.inCategory {
			return p.updateActivityList(msg)
		}
		return p.updateCategoryList(msg)
	}
	return p, nil
}

func (p activitiesModel) updateCategoryList(msg tea.KeyMsg) (activitiesModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.categories)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(p.categories) > 0 {
			p.inCategory = true
			p.activityCursor = 0
			return p, p.refreshActivities()
		}
	case key.Matches(msg, keys.New):
		return p.showCategoryForm(formNewCategory)
	case key.Matches(msg, keys.Edit):
		if len(p.categories) > 0 {
			return p.showCategoryForm(formEditCategory)
		}
	case key.Matches(msg, keys.Delete):
		if len(p.categories) > 0 {
			return p.showDeleteCategoryForm()
		}
	}
	return p, nil
}

func (p activitiesModel) updateActivityList(msg tea.KeyMsg) (activitiesModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		p.inCategory = false
		return p, nil
	case key.Matches(msg, keys.Up):
		if p.activityCursor > 0 {
			p.activityCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.activityCursor < len(p.activities)-1 {
			p.activityCursor++
		}
	case key.Matches(msg, keys.New):
		return p.showActivityForm(formNewActivity)
	case key.Matches(msg, keys.Edit):
		if len(p.activities) > 0 {
			return p.showActivityForm(formEditActivity)
		}
	}
	return p, nil
}

func (p activitiesModel) showCategoryForm(kind activityForm) (activitiesModel, tea.Cmd) {
	*p.formName = ""
	p.editingID = ""
	if kind == formEditCategory {
		c, _ := p.selected()
		*p.formName = c.Name
		p.editingID = c.ID
	}
	p.formType = kind

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Category Name").Value(p.formName).Validate(required("name")),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p activitiesModel) showDeleteCategoryForm() (activitiesModel, tea.Cmd) {
	c, _ := p.selected()
	*p.formConfirm = false
	p.editingID = c.ID
	p.formType = formDeleteCategory

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", c.Name)).
				Description("Its activities, their time entries and goals are deleted too.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(p.formConfirm),
		),
	).WithShowHelp(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p activitiesModel) showActivityForm(kind activityForm) (activitiesModel, tea.Cmd) {
	*p.formName, *p.formDesc, *p.formExternal = "", "", ""
	p.editingID = ""
	if kind == formEditActivity {
		a := p.activities[p.activityCursor]
		*p.formName = a.Name
		*p.formDesc = a.Description
		if a.ExternalSystem != nil {
			*p.formExternal = *a.ExternalSystem
		}
		p.editingID = a.ID
	}
	p.formType = kind

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Activity Name").Value(p.formName).Validate(required("name")),
			huh.NewText().Title("Description").Value(p.formDesc),
			huh.NewInput().Title("External system").Description("Optional, e.g. a ticket tracker").Value(p.formExternal),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func (p activitiesModel) updateForm(msg tea.Msg) (activitiesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		if err := p.save(); err != nil {
			return p, func() tea.Msg { return errorStatus("Save failed: %v", err) }
		}
		if p.formType == formDeleteCategory && *p.formConfirm {
			p.inCategory = false
		}
		return p, tea.Batch(p.refresh(), func() tea.Msg { return dataChangedMsg{} })
	}

	return p, cmd
}

// save applies the completed form to the store.
func (p activitiesModel) save() error {
	name := strings.TrimSpace(*p.formName)
	switch p.formType {
	case formNewCategory:
		_, err := p.store.AddCategory(store.Category{Name: name, Order: len(p.categories)})
		return err
	case formEditCategory:
		c, err := p.store.GetCategory(p.editingID)
		if err != nil {
			return err
		}
		c.Name = name
		return p.store.UpdateCategory(*c)
	case formDeleteCategory:
		if !*p.formConfirm {
			return nil
		}
		return p.store.DeleteCategory(p.editingID)
	case formNewActivity:
		c, ok := p.selected()
		if !ok {
			return nil
		}
		_, err := p.store.AddActivity(store.Activity{
			Name:           name,
			Category:       c.Name,
			Description:    strings.TrimSpace(*p.formDesc),
			ExternalSystem: optional(*p.formExternal),
			Order:          len(p.activities),
		})
		return err
	case formEditActivity:
		a, err := p.store.GetActivity(p.editingID)
		if err != nil {
			return err
		}
		a.Name = name
		a.Description = strings.TrimSpace(*p.formDesc)
		a.ExternalSystem = optional(*p.formExternal)
		return p.store.UpdateActivity(*a)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (p activitiesModel) view() string {
	if p.formActive && p.form != nil {
		var title string
		switch p.formType {
		case formNewCategory:
			title = "New Category"
		case formEditCategory:
			title = "Rename Category"
		case formDeleteCategory:
			title = "Delete Category"
		case formNewActivity:
			title = "New Activity"
		case formEditActivity:
			title = "Edit Activity"
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", p.form.View())
		return panelStyle.Width(p.width - 4).Render(content)
	}

	if p.inCategory {
		return p.renderActivityList()
	}
	return p.renderCategoryList()
}

func (p activitiesModel) renderCategoryList() string {
	w := p.width - 4
	title := titleStyle.Render("Categories")

	if len(p.categories) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No categories yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, c := range p.categories {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor)+categoryDot(c.Name)+" "+style.Render(c.Name))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: rename  d: delete  enter: activities"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p activitiesModel) renderActivityList() string {
	w := p.width - 4
	c, _ := p.selected()
	title := titleStyle.Render(fmt.Sprintf("%s %s: Activities", categoryDot(c.Name), c.Name))

	if len(p.activities) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No activities. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, a := range p.activities {
		cursor := "  "
		style := normalItemStyle
		if i == p.activityCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		extra := ""
		if a.ExternalSystem != nil {
			extra = mutedStyle.Render(" [" + *a.ExternalSystem + "]")
		}
		rows = append(rows, style.Render(cursor+a.Name)+extra)
		if a.Description != "" && i == p.activityCursor {
			rows = append(rows, mutedStyle.Render("    "+a.Description))
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new activity  e: edit  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
)

const contextSectionKey = "section"

var (
	canReadGrades = []permission{(*user.RoleManager).CanManageGrades, (*user.RoleManager).CanViewAllGrades}
	canEditGrades = []permission{(*user.RoleManager).CanManageGrades}
)

type gradeApi struct {
	svc *grade.Service
}

func registerGradeAPI(g *echo.Group, jwt *jwtAuth, opts *Options) {
	api := gradeApi{svc: opts.GradeSvc}

	ag := g.Group("", jwt.required())
	ag.GET("/subjects/:id", api.retrieveSubject)
	ag.PUT("/subjects/:id", api.saveSubject, requirePermission("gestionar materias", (*user.RoleManager).CanManageSubjects))
	ag.POST("/enrollments", api.enroll, requirePermission("gestionar inscripciones", (*user.RoleManager).CanManageEnrollments))

	sg := ag.Group("/sections/:subject/:group", api.sectionMiddleware)
	sg.GET("/roster", api.roster, requirePermission("ver calificaciones", canReadGrades...))
	sg.GET("/grades", api.table, requirePermission("ver calificaciones", canReadGrades...))
	sg.PUT("/grades", api.save, requirePermission("gestionar calificaciones", canEditGrades...))
	sg.PATCH("/grades", api.edit, requirePermission("gestionar calificaciones", canEditGrades...))
	sg.GET("/grades/average", api.average, requirePermission("ver calificaciones", canReadGrades...))
	sg.GET("/grades/me", api.own)
	sg.GET("/grades.csv", api.export, requirePermission("exportar datos", (*user.RoleManager).CanExportData))
}

// sectionMiddleware resolves the subject of the URL into a grade.Section.
func (api *gradeApi) sectionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		subject, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("subject"))
		if err != nil {
			if errors.Cause(err) == grade.ErrSubjectNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "getting subject")
		}
		ctx.Set(contextSectionKey, grade.Section{Subject: subject, Group: ctx.Param("group")})
		return next(ctx)
	}
}

func getContextSection(ctx echo.Context) grade.Section {
	section, _ := ctx.Get(contextSectionKey).(grade.Section)
	return section
}

// Handlers

func (api *gradeApi) retrieveSubject(ctx echo.Context) error {
	subject, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *gradeApi) saveSubject(ctx echo.Context) error {
	var data grade.Subject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Subject")
	}
	data.ID = ctx.Param("id")

	subject, err := api.svc.SaveSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *gradeApi) enroll(ctx echo.Context) error {
	var data grade.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *gradeApi) roster(ctx echo.Context) error {
	section := getContextSection(ctx)
	return ctx.JSON(http.StatusOK, api.svc.LoadRoster(ctx.Request().Context(), section.Subject.ID, section.Group))
}

func (api *gradeApi) table(ctx echo.Context) error {
	evalType := grade.EvaluationType(ctx.QueryParam("type"))
	if evalType == "" {
		evalType = grade.EvalAsistencia
	}
	return ctx.JSON(http.StatusOK, api.svc.Table(ctx.Request().Context(), getContextSection(ctx), evalType))
}

func (api *gradeApi) save(ctx echo.Context) error {
	var data SaveScoresRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveScoresRequest")
	}
	if data.Scores == nil {
		data.Scores = make(grade.Scores)
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Save(ctx.Request().Context(), getContextSection(ctx), data.Scores, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "saving scores")
	}
	return persistResponse(ctx, res)
}

func (api *gradeApi) edit(ctx echo.Context) error {
	var data EditScoresRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditScoresRequest")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.ApplyEdits(ctx.Request().Context(), getContextSection(ctx), data.Edits, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "applying edits")
	}
	return persistResponse(ctx, res)
}

func persistResponse(ctx echo.Context, res grade.PersistResult) error {
	if !res.Success {
		return ctx.JSON(http.StatusServiceUnavailable, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *gradeApi) average(ctx echo.Context) error {
	section := getContextSection(ctx)
	scores := api.svc.LoadScoreSheet(ctx.Request().Context(), section.Subject.Code, section.Group)
	return ctx.JSON(http.StatusOK, newAverageResponse(grade.Average(scores)))
}

// own shows the signed-in student their row of the section.
func (api *gradeApi) own(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	section := getContextSection(ctx)
	reqCtx := ctx.Request().Context()
	var me *grade.Student
	for _, st := range api.svc.LoadRoster(reqCtx, section.Subject.ID, section.Group) {
		if st.ID == ctxUsr.ID {
			st := st
			me = &st
			break
		}
	}
	if me == nil {
		return errHttpNotFound
	}

	evalType := grade.EvaluationType(ctx.QueryParam("type"))
	if evalType == "" {
		evalType = grade.EvalAsistencia
	}
	scores := api.svc.LoadScoreSheet(reqCtx, section.Subject.Code, section.Group)
	own := grade.Scores{}
	if st, ok := scores[me.ID]; ok {
		own[me.ID] = st
	}
	tbl := grade.BuildTable([]grade.Student{*me}, section.Subject.Units, evalType, own)

	return ctx.JSON(http.StatusOK, OwnGradesResponse{
		Headers:         tbl.Headers,
		SubHeaders:      tbl.SubHeaders,
		Row:             tbl.Rows[0],
		AverageResponse: newAverageResponse(grade.Average(own)),
	})
}

func (api *gradeApi) export(ctx echo.Context) error {
	section := getContextSection(ctx)
	reqCtx := ctx.Request().Context()

	students := api.svc.LoadRoster(reqCtx, section.Subject.ID, section.Group)
	scores := api.svc.LoadScoreSheet(reqCtx, section.Subject.Code, section.Group)
	data, err := grade.ToCSV(students, scores, section.Subject)
	if err != nil {
		return errors.Wrap(err, "exporting scores")
	}

	filename := grade.ExportFilename(section.Subject.Code, section.Group)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

type (
	SaveScoresRequest struct {
		Scores grade.Scores `json:"estudiantes"`
	}

	EditScoresRequest struct {
		Edits []grade.Edit `json:"edits"`
	}

	AverageResponse struct {
		Average float64 `json:"average"`
		Status  string  `json:"status"`
		Color   string  `json:"color"`
	}

	OwnGradesResponse struct {
		Headers    []grade.HeaderGroup `json:"headers"`
		SubHeaders []string            `json:"subHeaders"`
		Row        grade.Row           `json:"row"`
		AverageResponse
	}
)

func newAverageResponse(avg float64) AverageResponse {
	return AverageResponse{Average: avg, Status: grade.Status(avg), Color: grade.Color(avg)}
}

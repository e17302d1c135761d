package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	"github.com/simonmuehling/educafric-platform-sub005/services/importer"
)

var maxSheetSize int64 = 5 << 20

type (
	commentRequest struct {
		Comment string `json:"comment"`
	}

	// approveRequest is the body of `/approve`: the action defaults to approve.
	approveRequest struct {
		Action  bulletin.Action `json:"action"`
		Comment string          `json:"comment"`
	}

	gradesRequest struct {
		Grades []bulletin.GradeInput `json:"grades"`
	}
)

type bulletinApi struct {
	svc *bulletin.Service
}

func registerBulletinAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *bulletin.Service) {
	api := bulletinApi{svc: svc}

	staff := rolesMiddleware(RoleDirector, RoleTeacher)
	director := rolesMiddleware(RoleDirector)

	bg := g.Group("/bulletins", jwt)
	bg.GET("", api.query, staff)
	bg.POST("", api.create, staff)
	bg.GET("/pending", api.queryPending, director)
	bg.GET("/status/:status", api.queryByStatus, staff)
	bg.POST("/import", api.importGrades, staff)
	bg.POST("/verify", api.verify, rolesMiddleware(RoleParent))
	bg.GET("/track/:trackingNumber", api.track)

	// detail endpoints
	dg := bg.Group("/:id")
	dg.GET("", api.retrieve, staff)
	dg.GET("/approvals", api.approvals, staff)
	dg.PUT("/grades", api.saveGrades, staff)
	dg.DELETE("/grades/:subjectId", api.deleteGrade, staff)
	dg.POST("/submit", api.transition(bulletin.ActionSubmit), staff)
	dg.POST("/approve", api.approve, director)
	dg.PATCH("/approve", api.approve, director)
	dg.POST("/reject", api.transition(bulletin.ActionReject), director)
	dg.POST("/send", api.transition(bulletin.ActionSend), director)
}

// Handlers

func (api *bulletinApi) list(ctx echo.Context, filter bulletin.QueryFilter) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page := new(Page)
	if err := page.Bind(ctx); err != nil {
		return err
	}

	bulletins, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page.DBPage)
	if err != nil {
		return errors.Wrap(err, "querying bulletins")
	}
	if bulletins == nil {
		bulletins = []bulletin.Bulletin{}
	}
	return ctx.JSON(http.StatusOK, bulletins)
}

func (api *bulletinApi) query(ctx echo.Context) error {
	return api.list(ctx, bindQueryFilter(ctx))
}

func (api *bulletinApi) queryByStatus(ctx echo.Context) error {
	filter := bindQueryFilter(ctx)
	filter.Status = bulletin.Status(core.CleanString(ctx.Param("status"), true))
	return api.list(ctx, filter)
}

func (api *bulletinApi) queryPending(ctx echo.Context) error {
	filter := bindQueryFilter(ctx)
	filter.Status = bulletin.StatusPending
	return api.list(ctx, filter)
}

func (api *bulletinApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving bulletin")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bulletinApi) approvals(ctx echo.Context) error {
	approvals, err := api.svc.Approvals(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying approvals")
	}
	if approvals == nil {
		approvals = []bulletin.Approval{}
	}
	return ctx.JSON(http.StatusOK, approvals)
}

// defaultTeacher credits the grades without a teacher to the ctx user.
func defaultTeacher(ctx echo.Context, grades []bulletin.GradeInput) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return
	}
	for i := range grades {
		if grades[i].TeacherID == "" {
			grades[i].TeacherID = claims.Subject
		}
	}
}

func (api *bulletinApi) create(ctx echo.Context) error {
	var data bulletin.NewBulletin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBulletin")
	}
	defaultTeacher(ctx, data.Grades)

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating bulletin")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bulletinApi) saveGrades(ctx echo.Context) error {
	var data gradesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to gradesRequest")
	}
	if len(data.Grades) == 0 {
		return core.NewFieldError("grades", "this field is required")
	}
	defaultTeacher(ctx, data.Grades)

	b, err := api.svc.SaveGrades(ctx.Request().Context(), ctx.Param("id"), data.Grades)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bulletinApi) deleteGrade(ctx echo.Context) error {
	b, err := api.svc.DeleteGrade(ctx.Request().Context(), ctx.Param("id"), ctx.Param("subjectId"))
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bulletinApi) importGrades(ctx echo.Context) error {
	key := bulletin.ClassKey{
		ClassID:        core.CleanString(ctx.FormValue("class_id")),
		TermID:         core.CleanString(ctx.FormValue("term_id")),
		AcademicYearID: core.CleanString(ctx.FormValue("academic_year_id")),
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewFieldError("file", "this field is required")
	}
	if fh.Size > maxSheetSize {
		return core.NewFieldError("file", "file is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	rows, err := importer.ParseGradeSheet(f)
	if err != nil {
		return err
	}
	report, err := api.svc.ImportGrades(ctx.Request().Context(), key, core.CleanString(ctx.FormValue("school_id")), rows)
	if err != nil {
		return errors.Wrap(err, "importing grades")
	}
	return ctx.JSON(http.StatusOK, report)
}

// Workflow

func (api *bulletinApi) execute(ctx echo.Context, action bulletin.Action, comment string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	cmd := bulletin.Command{Action: action, ActorID: claims.Subject, Comment: comment}

	b, err := api.svc.Execute(ctx.Request().Context(), ctx.Param("id"), cmd)
	if err != nil {
		return errors.Wrapf(err, "executing %s", action)
	}
	return ctx.JSON(http.StatusOK, b)
}

// transition handles the endpoints that take an optional `{comment}` body.
func (api *bulletinApi) transition(action bulletin.Action) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data commentRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to commentRequest")
		}
		return api.execute(ctx, action, data.Comment)
	}
}

func (api *bulletinApi) approve(ctx echo.Context) error {
	var data approveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to approveRequest")
	}
	switch data.Action {
	case "", bulletin.ActionApprove:
		return api.execute(ctx, bulletin.ActionApprove, data.Comment)
	case bulletin.ActionReject:
		return api.execute(ctx, bulletin.ActionReject, data.Comment)
	default:
		return core.NewFieldError("action", "must be one of approve, reject")
	}
}

// Verification

func (api *bulletinApi) verify(ctx echo.Context) error {
	var data bulletin.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.ParentID = claims.Subject
	data.IPAddress = ctx.RealIP()
	data.UserAgent = ctx.Request().UserAgent()

	res, err := api.svc.Verify(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "verifying bulletin")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *bulletinApi) track(ctx echo.Context) error {
	res, err := api.svc.Track(ctx.Request().Context(), ctx.Param("trackingNumber"))
	if err != nil {
		return errors.Wrap(err, "tracking bulletin")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Package page models the app's startup and authentication screens on top
// of a session's locator resolver.
package page

import "github.com/devicelab-dev/appium-harness/pkg/locator"

// Built-in elements. Each tries the widget key first, then native fallbacks.
var (
	SplashLogo = locator.Define("splash_logo",
		"instrumented:key=smor_ting_logo",
		"native:accessibility id=smor_ting_logo",
	)

	OnboardingSkip = locator.Define("onboarding_skip",
		"instrumented:key=onboarding_skip",
		"native:accessibility id=onboarding_skip",
		"native:text=Skip",
	)

	LandingSignIn = locator.Define("landing_sign_in",
		"instrumented:key=landing_sign_in",
		"native:accessibility id=landing_sign_in",
		"native@android:xpath=//android.widget.Button[contains(@text, 'Sign In') or contains(@text, 'Login') or contains(@text, 'Returning User')]",
		"native@ios:contains=Sign In",
	)

	LandingRegister = locator.Define("landing_register",
		"instrumented:key=landing_register",
		"native:accessibility id=landing_register",
		"native@android:xpath=//android.widget.Button[contains(@text, 'Register') or contains(@text, 'Sign Up') or contains(@text, 'New User')]",
		"native@ios:contains=Register",
	)

	LoginEmail = locator.Define("login_email",
		"instrumented:key=login_email",
		"native:accessibility id=login_email",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'email') or contains(@hint, 'Email')]",
		"native@ios:-ios class chain=**/XCUIElementTypeTextField[`placeholderValue CONTAINS 'Email'`]",
	)

	LoginPassword = locator.Define("login_password",
		"instrumented:key=login_password",
		"native:accessibility id=login_password",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'password') or contains(@hint, 'Password')]",
		"native@ios:-ios class chain=**/XCUIElementTypeSecureTextField",
	)

	LoginSubmit = locator.Define("login_submit",
		"instrumented:key=login_submit",
		"native:accessibility id=login_submit",
		"native:contains=Sign In",
	)

	LoginRegisterLink = locator.Define("login_register_link",
		"instrumented:key=login_register_link",
		"native:accessibility id=login_register_link",
		"native@android:xpath=//*[contains(@text, 'Register') or contains(@text, 'Sign Up')]",
		"native@ios:contains=Sign Up",
	)

	LoginForgotPassword = locator.Define("login_forgot_password",
		"instrumented:key=login_forgot_password",
		"native:accessibility id=login_forgot_password",
		"native:contains=Forgot Password",
	)

	RegisterFirstName = locator.Define("register_first_name",
		"instrumented:key=register_first_name",
		"native:accessibility id=register_first_name",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'first') or contains(@hint, 'First')]",
	)

	RegisterLastName = locator.Define("register_last_name",
		"instrumented:key=register_last_name",
		"native:accessibility id=register_last_name",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'last') or contains(@hint, 'Last')]",
	)

	RegisterEmail = locator.Define("register_email",
		"instrumented:key=register_email",
		"native:accessibility id=register_email",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'email') or contains(@hint, 'Email')]",
	)

	RegisterPhone = locator.Define("register_phone",
		"instrumented:key=register_phone",
		"native:accessibility id=register_phone",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'phone') or contains(@hint, 'Phone')]",
	)

	RegisterPassword = locator.Define("register_password",
		"instrumented:key=register_password",
		"native:accessibility id=register_password",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'password') or contains(@hint, 'Password')]",
	)

	RegisterConfirmPassword = locator.Define("register_confirm_password",
		"instrumented:key=register_confirm_password",
		"native:accessibility id=register_confirm_password",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'confirm') or contains(@hint, 'Confirm')]",
	)

	RegisterSubmit = locator.Define("register_submit",
		"instrumented:key=register_submit",
		"native:accessibility id=register_submit",
		"native@android:xpath=//android.widget.Button[contains(@text, 'Register') or contains(@content-desc, 'Register')]",
		"native@ios:contains=Register",
	)

	RegisterLoginLink = locator.Define("register_to_login",
		"instrumented:key=register_to_login",
		"native:accessibility id=register_to_login",
		"native@android:xpath=//*[contains(@text, 'Login') or contains(@text, 'Sign In')]",
		"native@ios:contains=Sign In",
	)

	ForgotEmail = locator.Define("forgot_email",
		"instrumented:key=forgot_email",
		"native:accessibility id=forgot_email",
		"native@android:xpath=//android.widget.EditText[contains(@content-desc, 'email') or contains(@hint, 'Email')]",
	)

	ForgotSubmit = locator.Define("forgot_submit",
		"instrumented:key=forgot_submit",
		"native:accessibility id=forgot_submit",
		"native@android:xpath=//android.widget.Button[contains(@text, 'Submit') or contains(@text, 'Continue')]",
		"native@ios:contains=Continue",
	)

	ErrorDialogMessage = locator.Define("error_dialog_message",
		"instrumented:key=error_dialog_message",
		"native@android:xpath=//*[contains(@resource-id, 'message') or contains(@resource-id, 'content')]",
		"native@ios:-ios class chain=**/XCUIElementTypeAlert/**/XCUIElementTypeStaticText[2]",
	)

	ErrorDialogOK = locator.Define("error_dialog_ok",
		"instrumented:key=error_dialog_ok",
		"native@android:xpath=//android.widget.Button[contains(@text, 'OK') or contains(@text, 'Ok')]",
		"native@ios:contains=OK",
	)

	DashboardWelcome = locator.Define("dashboard_welcome",
		"instrumented:key=dashboard_welcome",
		"native@android:xpath=//*[contains(@text, 'Welcome') or contains(@text, 'Dashboard')]",
		"native@ios:contains=Welcome",
	)
)

// Builtins returns a catalog of every built-in element.
func Builtins() *locator.Catalog {
	return locator.NewCatalog(
		SplashLogo,
		OnboardingSkip,
		LandingSignIn,
		LandingRegister,
		LoginEmail,
		LoginPassword,
		LoginSubmit,
		LoginRegisterLink,
		LoginForgotPassword,
		RegisterFirstName,
		RegisterLastName,
		RegisterEmail,
		RegisterPhone,
		RegisterPassword,
		RegisterConfirmPassword,
		RegisterSubmit,
		RegisterLoginLink,
		ForgotEmail,
		ForgotSubmit,
		ErrorDialogMessage,
		ErrorDialogOK,
		DashboardWelcome,
	)
}
